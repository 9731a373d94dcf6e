// internal/handlers/ledger.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
)

const (
	// HeaderIdempotencyKey carries the client's retry key
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplayed marks a response served from an earlier commit
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	maxBodyBytes = 1 << 20
)

// LedgerHandler handles sales and purchases
type LedgerHandler struct {
	service ports.LedgerService
	logger  *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(service ports.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "ledger")),
	}
}

// CreateTransaction handles POST /api/v1/transactions
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SaleRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	op := domain.NewSale(actor.ID, req.lines(), req.PaymentMethod).
		WithIdempotencyKey(r.Header.Get(HeaderIdempotencyKey))

	h.apply(w, r, op, "Transaction created successfully")
}

// CreatePurchase handles POST /api/v1/purchases
func (h *LedgerHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PurchaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	op := domain.NewRestock(actor.ID, req.SupplierID, req.lines()).
		WithIdempotencyKey(r.Header.Get(HeaderIdempotencyKey))

	h.apply(w, r, op, "Purchase recorded successfully")
}

func (h *LedgerHandler) apply(w http.ResponseWriter, r *http.Request, op domain.Operation, message string) {
	record, err := h.service.ApplyAndNotify(r.Context(), op)
	if err != nil {
		writeServiceError(w, r, h.logger, "apply "+string(op.Kind), err)
		return
	}

	if record.Replayed {
		w.Header().Set(HeaderIdempotentReplayed, "true")
		respondJSON(w, h.logger, http.StatusOK, message, record)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, message, record)
}

// GetTransaction handles GET /api/v1/transactions/{id}
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, domain.KindSale)
}

// GetPurchase handles GET /api/v1/purchases/{id}
func (h *LedgerHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, domain.KindRestock)
}

func (h *LedgerHandler) get(w http.ResponseWriter, r *http.Request, kind domain.OperationKind) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid ID format")
		return
	}

	record, err := h.service.Get(r.Context(), kind, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get "+string(kind), err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", record)
}

// ListTransactions handles GET /api/v1/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.KindSale)
}

// ListPurchases handles GET /api/v1/purchases
func (h *LedgerHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.KindRestock)
}

func (h *LedgerHandler) list(w http.ResponseWriter, r *http.Request, kind domain.OperationKind) {
	filter, err := parseLedgerFilter(r, kind)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, "list "+string(kind), err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", result)
}

func parseLedgerFilter(r *http.Request, kind domain.OperationKind) (domain.LedgerFilter, error) {
	q := r.URL.Query()
	filter := domain.LedgerFilter{
		Kind:     kind,
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("limit"), 20),
	}

	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid user_id")
		}
		filter.ActorID = &id
	}

	from, err := parseDate(q.Get("from"))
	if err != nil {
		return filter, fmt.Errorf("invalid from date")
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		return filter, fmt.Errorf("invalid to date")
	}
	if to != nil && len(q.Get("to")) == len(time.DateOnly) {
		// a bare date includes the whole day
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	filter.From, filter.To = from, to

	filter.Normalize()
	return filter, nil
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", v)
}

func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// Request DTOs

// ItemRequest is one line of a sale or purchase body
type ItemRequest struct {
	ProductID int64 `json:"product_id"`
	Qty       int64 `json:"qty"`
	Cost      int64 `json:"cost,omitempty"`
}

// SaleRequest represents the body of POST /api/v1/transactions
type SaleRequest struct {
	Items         []ItemRequest `json:"items"`
	PaymentMethod string        `json:"payment_method,omitempty"`
}

// Validate checks fields the ledger does not
func (r *SaleRequest) Validate() error {
	switch r.PaymentMethod {
	case "", domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer, domain.PaymentQRIS:
		return nil
	}
	return fmt.Errorf("unsupported payment method %q", r.PaymentMethod)
}

func (r *SaleRequest) lines() []domain.LineRequest {
	lines := make([]domain.LineRequest, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.LineRequest{ProductID: it.ProductID, Quantity: it.Qty})
	}
	return lines
}

// PurchaseRequest represents the body of POST /api/v1/purchases
type PurchaseRequest struct {
	SupplierID *int64        `json:"supplier_id,omitempty"`
	Items      []ItemRequest `json:"items"`
}

func (r *PurchaseRequest) lines() []domain.LineRequest {
	lines := make([]domain.LineRequest, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.LineRequest{ProductID: it.ProductID, Quantity: it.Qty, UnitCost: it.Cost})
	}
	return lines
}
