package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"schedule-engine/internal/api/handler/dto"
	"schedule-engine/internal/domain/schedule"
	"schedule-engine/internal/pkg/apperrors"
)

type ScheduleHandler struct {
	service schedule.ScheduleService
	logger  *slog.Logger
	now     func() time.Time
}

func NewScheduleHandler(s schedule.ScheduleService, l *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: s,
		logger:  l.With("component", "ScheduleHandler"),
		now:     time.Now,
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	case errors.Is(err, apperrors.ErrPrecondition), errors.Is(err, apperrors.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrInvalidTerms), errors.Is(err, apperrors.ErrInvalidEdit):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.As(err, &appErr):
		message = appErr.Error()
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

func idFromURL(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	if idStr == "" {
		return 0, fmt.Errorf("%s not found in URL path", param)
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// PreviewSchedule computes a schedule for the supplied terms without
// persisting anything. Staff can call this as often as they like while
// tuning inputs; each response replaces the whole preview.
func (h *ScheduleHandler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req dto.GenerateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(h.now()); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	terms, startDate, err := req.ToTerms()
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	sched, err := h.service.PreviewSchedule(r.Context(), terms, startDate)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(sched))
}

// SubmitContract locks the terms and persists the schedule as payment rows.
func (h *ScheduleHandler) SubmitContract(w http.ResponseWriter, r *http.Request) {
	var req dto.GenerateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(h.now()); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	terms, startDate, err := req.ToTerms()
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.SubmitContract(r.Context(), req.AccountID, terms, startDate)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created, false))
}

func (h *ScheduleHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	if r.URL.Query().Get("include") == "payments" {
		payments, err := h.service.GetSchedule(r.Context(), loanID)
		if err != nil {
			respondError(w, err)
			return
		}
		l.Payments = payments
		respondJSON(w, http.StatusOK, dto.NewLoanResponse(l, true))
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l, false))
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	payments, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, dto.NewPaymentResponse(&payments[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// EditPayment applies a manual amount/date override with an audit note.
func (h *ScheduleHandler) EditPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := idFromURL(r, "paymentID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.EditPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	editReq, err := req.ToEditRequest()
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	edited, err := h.service.EditPayment(r.Context(), paymentID, editReq)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentResponse(edited))
}

// DeferPayment pushes a pending payment to the end of the schedule.
func (h *ScheduleHandler) DeferPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := idFromURL(r, "paymentID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.DeferPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	deferralReq, err := req.ToDeferralRequest(paymentID)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	deferred, appended, err := h.service.DeferPayment(r.Context(), deferralReq)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.DeferralResponse{
		DeferredPayment: dto.NewPaymentResponse(deferred),
		AppendedPayment: dto.NewPaymentResponse(appended),
	})
}
