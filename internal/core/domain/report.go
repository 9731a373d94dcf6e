// internal/core/domain/report.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyRevenue aggregates committed sales for one calendar day
type DailyRevenue struct {
	Date             time.Time `json:"date"`
	TransactionCount int64     `json:"total_transactions"`
	Revenue          int64     `json:"revenue"`
}

// BestSeller aggregates sold quantity per product
type BestSeller struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
	Revenue   int64  `json:"revenue_generated"`
}

// DashboardStats backs the dashboard cards
type DashboardStats struct {
	SalesToday        int64           `json:"sales_today"`
	TransactionsToday int64           `json:"transactions_today"`
	LowStockCount     int64           `json:"low_stock_count"`
	AverageTicket     decimal.Decimal `json:"average_ticket"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// ComputeAverageTicket derives the mean sale total, rounded to two places.
func (s *DashboardStats) ComputeAverageTicket() {
	if s.TransactionsToday == 0 {
		s.AverageTicket = decimal.Zero
		return
	}
	s.AverageTicket = decimal.NewFromInt(s.SalesToday).
		Div(decimal.NewFromInt(s.TransactionsToday)).
		Round(2)
}

// MinorToMajor converts an amount in the smallest currency unit to major units
// using exponent decimal places.
func MinorToMajor(amount int64, exponent int32) decimal.Decimal {
	return decimal.New(amount, -exponent)
}
