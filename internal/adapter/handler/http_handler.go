package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/phantom-eng/bytefood-web/internal/adapter/geo"
	"github.com/phantom-eng/bytefood-web/internal/adapter/presenter"
	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/core/service"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

type HTTPHandler struct {
	checkout *service.CheckoutService
	receipts *presenter.Archive
	hours    domain.Hours
	timeZone *time.Location
	validate *validator.Validate
	logger   *zap.Logger
}

type AddItemRequest struct {
	Name  string          `json:"name" validate:"required,max=200"`
	Price decimal.Decimal `json:"price"`
}

type DeliveryRequest struct {
	Address      *string `json:"address" validate:"omitempty,max=500"`
	Instructions *string `json:"instructions" validate:"omitempty,max=500"`
}

type LocationRequest struct {
	Lat         *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng" validate:"omitempty,longitude"`
	Denied      bool     `json:"denied"`
	Unsupported bool     `json:"unsupported"`
}

type QRRequest struct {
	Method string `json:"method" validate:"required,oneof=yape plin qr Yape Plin QR"`
}

type CardRequest struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

type SessionResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Session *service.View `json:"session,omitempty"`
	URL     string        `json:"url,omitempty"`
}

type StoreStatusResponse struct {
	Open      bool   `json:"open"`
	Label     string `json:"label"`
	OpenHour  int    `json:"open_hour"`
	CloseHour int    `json:"close_hour"`
}

func NewHTTPHandler(checkout *service.CheckoutService, receipts *presenter.Archive, hours domain.Hours, timeZone *time.Location, logger *zap.Logger) *HTTPHandler {
	if timeZone == nil {
		timeZone = time.Local
	}
	return &HTTPHandler{
		checkout: checkout,
		receipts: receipts,
		hours:    hours,
		timeZone: timeZone,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/store/status", h.StoreStatus)
	mux.HandleFunc("POST /api/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.DisposeSession)
	mux.HandleFunc("POST /api/sessions/{id}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/sessions/{id}/items/{name}", h.RemoveItem)
	mux.HandleFunc("DELETE /api/sessions/{id}/items", h.ClearCart)
	mux.HandleFunc("PUT /api/sessions/{id}/delivery", h.SetDelivery)
	mux.HandleFunc("POST /api/sessions/{id}/location", h.CaptureLocation)
	mux.HandleFunc("POST /api/sessions/{id}/checkout", h.BeginCheckout)
	mux.HandleFunc("POST /api/sessions/{id}/payment/qr", h.ChooseQR)
	mux.HandleFunc("POST /api/sessions/{id}/payment/qr/confirm", h.ConfirmQR)
	mux.HandleFunc("POST /api/sessions/{id}/payment/card", h.SubmitCard)
	mux.HandleFunc("POST /api/sessions/{id}/send", h.Send)
	mux.HandleFunc("GET /api/sessions/{id}/receipt", h.Receipt)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) StoreStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.timeZone)
	writeJSON(w, http.StatusOK, StoreStatusResponse{
		Open:      h.hours.IsOpen(now),
		Label:     h.hours.StatusLabel(now),
		OpenHour:  h.hours.Open,
		CloseHour: h.hours.Close,
	})
}

func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.Open(r.Context(), "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusCreated, sess, "")
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) DisposeSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	forget := r.URL.Query().Get("forget") == "true"
	if err := h.checkout.Dispose(r.Context(), id, forget); err != nil {
		h.writeError(w, err)
		return
	}
	if h.receipts != nil {
		h.receipts.Forget(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Add(r.Context(), req.Name, req.Price); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveOne(r.Context(), r.PathValue("name")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Clear(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if req.Address != nil {
		if err := sess.SetAddress(*req.Address); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Instructions != nil {
		if err := sess.SetInstructions(*req.Instructions); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) CaptureLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var locator port.Locator
	switch {
	case req.Unsupported:
	case req.Denied:
		locator = geo.Denied{}
	case req.Lat == nil || req.Lng == nil:
		writeJSON(w, http.StatusBadRequest, SessionResponse{Success: false, Message: "missing or invalid fields"})
		return
	default:
		locator = geo.Fixed{Location: domain.Location{Latitude: *req.Lat, Longitude: *req.Lng}}
	}

	pending, err := sess.CaptureLocation(r.Context(), locator)
	if err != nil {
		h.writeError(w, err)
		return
	}
	select {
	case outcome := <-pending:
		if outcome.Err != nil {
			h.writeError(w, outcome.Err)
			return
		}
		h.writeSession(w, http.StatusOK, sess, "Ubicación capturada")
	case <-r.Context().Done():
		h.writeSession(w, http.StatusAccepted, sess, "")
	}
}

func (h *HTTPHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.BeginCheckout(); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) ChooseQR(w http.ResponseWriter, r *http.Request) {
	var req QRRequest
	if !h.decode(w, r, &req) {
		return
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.ChooseQR(method); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, sess, "")
}

func (h *HTTPHandler) ConfirmQR(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pending, err := sess.ConfirmQR()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.awaitPayment(r.Context(), w, sess, pending)
}

func (h *HTTPHandler) SubmitCard(w http.ResponseWriter, r *http.Request) {
	var req CardRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pending, err := sess.SubmitCard(domain.Card{Number: req.Number, Expiry: req.Expiry, CVV: req.CVV})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.awaitPayment(r.Context(), w, sess, pending)
}

func (h *HTTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	msg, err := sess.Send(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	view := sess.View()
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Session: &view, URL: msg.URL})
}

func (h *HTTPHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	receipt, found := sess.Receipt()
	if !found && h.receipts != nil {
		receipt, found = h.receipts.Get(sess.ID())
	}
	if !found {
		h.writeError(w, domain.ErrPaymentRequired)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := receipt.RenderHTML(w); err != nil {
		h.logger.Error("render receipt failed", zap.String("session_id", sess.ID()), zap.Error(err))
	}
}

// awaitPayment blocks until the simulated verification resolves. A client that goes away
// does not cancel the payment; it can poll the session instead.
func (h *HTTPHandler) awaitPayment(ctx context.Context, w http.ResponseWriter, sess *service.Session, pending <-chan service.PaymentOutcome) {
	select {
	case outcome := <-pending:
		if outcome.Err != nil {
			h.writeError(w, outcome.Err)
			return
		}
		h.writeSession(w, http.StatusOK, sess, domain.Notice(outcome.PresentErr))
	case <-ctx.Done():
		h.writeSession(w, http.StatusAccepted, sess, "Verificando pago...")
	}
}

func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, err := h.checkout.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, SessionResponse{
			Success: false,
			Message: "invalid request body",
		})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, SessionResponse{
			Success: false,
			Message: "missing or invalid fields",
		})
		return false
	}
	return true
}

func (h *HTTPHandler) writeSession(w http.ResponseWriter, status int, sess *service.Session, message string) {
	view := sess.View()
	writeJSON(w, status, SessionResponse{Success: true, Message: message, Session: &view})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, SessionResponse{
		Success: false,
		Message: domain.Notice(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrStoreClosed):
		return http.StatusForbidden
	case domain.IsInvalidCard(err),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrInvalidMethod),
		errors.Is(err, domain.ErrPriceConflict),
		errors.Is(err, domain.ErrGeolocationDenied),
		errors.Is(err, domain.ErrGeolocationUnavailable):
		return http.StatusUnprocessableEntity
	case service.IsNotice(err), errors.Is(err, domain.ErrStalePayment):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
