// internal/core/domain/reference.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrReferenceNotFound is returned when a category or supplier id is unknown.
var ErrReferenceNotFound = errors.New("reference not found")

// Category groups products for browsing and filtering.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate trims and checks the category name
func (c *Category) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || len(c.Name) > 100 {
		return fmt.Errorf("category name must be 1-100 characters")
	}
	return nil
}

// Supplier is the counterparty of a restock.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate trims and checks the supplier name
func (s *Supplier) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" || len(s.Name) > 150 {
		return fmt.Errorf("supplier name must be 1-150 characters")
	}
	return nil
}
