package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/service/payment"
)

type paymentService interface {
	Create(ctx context.Context, req payment.CreateRequest) (*domain.Payment, *domain.Account, error)
	Cancel(ctx context.Context, id uuid.UUID, reason *string) (*domain.Payment, *domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	RentObligationID uuid.UUID `json:"rent_obligation_id"`
	AccountID        uuid.UUID `json:"account_id"`
	Amount           *Money    `json:"amount"`
	LateFeeAmount    *Money    `json:"late_fee_amount"`
	PaymentDate      *Date     `json:"payment_date"`
	ReferenceNo      *string   `json:"reference_no"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.RentObligationID == uuid.Nil {
		errs = append(errs, FieldError{Field: "rent_obligation_id", Message: "required"})
	}
	if r.AccountID == uuid.Nil {
		errs = append(errs, FieldError{Field: "account_id", Message: "required"})
	}
	errs = append(errs, validateAmount("amount", r.Amount)...)
	if r.LateFeeAmount != nil && r.LateFeeAmount.Decimal().IsNegative() {
		errs = append(errs, FieldError{Field: "late_fee_amount", Message: "must not be negative"})
	}
	return errs
}

type cancelPaymentRequest struct {
	Reason *string `json:"reason"`
}

type paymentDTO struct {
	ID                 uuid.UUID  `json:"id"`
	RentObligationID   uuid.UUID  `json:"rent_obligation_id"`
	OwnerID            uuid.UUID  `json:"owner_id"`
	AccountID          uuid.UUID  `json:"account_id"`
	Amount             string     `json:"amount"`
	LateFeeAmount      string     `json:"late_fee_amount"`
	Total              string     `json:"total"`
	PaymentDate        string     `json:"payment_date"`
	ReferenceNo        *string    `json:"reference_no"`
	IsCanceled         bool       `json:"is_canceled"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:                 p.ID,
		RentObligationID:   p.RentObligationID,
		OwnerID:            p.OwnerID,
		AccountID:          p.AccountID,
		Amount:             domain.FormatMoney(p.Amount),
		LateFeeAmount:      domain.FormatMoney(p.LateFeeAmount),
		Total:              domain.FormatMoney(p.Total()),
		PaymentDate:        p.PaymentDate.Format(dateLayout),
		ReferenceNo:        p.ReferenceNo,
		IsCanceled:         p.Canceled,
		CanceledAt:         p.CanceledAt,
		CancellationReason: p.CancellationReason,
		CreatedAt:          p.CreatedAt,
	}
}

type paymentResult struct {
	Payment paymentDTO `json:"payment"`
	Account accountDTO `json:"account"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, acct, err := h.payments.Create(r.Context(), payment.CreateRequest{
		RentObligationID: req.RentObligationID,
		AccountID:        req.AccountID,
		Amount:           req.Amount.Decimal(),
		LateFeeAmount:    moneyOrZero(req.LateFeeAmount),
		PaymentDate:      req.PaymentDate.timePtr(),
		ReferenceNo:      req.ReferenceNo,
		CreatedBy:        actorFrom(r),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment creation failed", "error", err,
			"rent_obligation_id", req.RentObligationID)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", p.ID))
	RespondSuccess(w, http.StatusCreated, paymentResult{Payment: toPaymentDTO(p), Account: toAccountDTO(acct)})
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req cancelPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Reason != nil {
		reason := strings.TrimSpace(*req.Reason)
		req.Reason = &reason
	}

	p, acct, err := h.payments.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment cancel failed", "error", err, "payment_id", id)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, paymentResult{Payment: toPaymentDTO(p), Account: toAccountDTO(acct)})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.Get(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := domain.PaymentFilter{
		RentObligationID: q.uuidValue("rent_id"),
		AccountID:        q.uuidValue("account_id"),
		Canceled:         q.boolValue("canceled"),
	}
	if len(q.errors) > 0 {
		RespondValidationError(w, q.errors)
		return
	}

	payments, err := h.payments.List(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list payments", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]paymentDTO, len(payments))
	for i := range payments {
		dtos[i] = toPaymentDTO(&payments[i])
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
