package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

// SessionConfig carries the store settings every session renders with.
type SessionConfig struct {
	StoreName   string
	Currency    string
	Destination string
	// Hours gates Add; nil means always open.
	Hours      *domain.Hours
	TimeZone   *time.Location
	TimeLayout string
	CardDelay  time.Duration
	QRDelay    time.Duration
	Now        func() time.Time
}

func (c SessionConfig) now() time.Time {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	if c.TimeZone != nil {
		now = now.In(c.TimeZone)
	}
	return now
}

// PaymentOutcome resolves a card or QR verification.
type PaymentOutcome struct {
	Method  domain.PaymentMethod
	Receipt *domain.Receipt
	// PresentErr is set when the receipt could not be shown; payment still counts.
	PresentErr error
	Err        error
}

// LocationOutcome resolves a location capture.
type LocationOutcome struct {
	Location domain.Location
	Err      error
}

// View is a read-only snapshot of a session for renderers.
type View struct {
	SessionID      string               `json:"session_id"`
	State          domain.CheckoutState `json:"state"`
	Order          domain.Order         `json:"order"`
	ItemCount      int                  `json:"item_count"`
	Address        string               `json:"address,omitempty"`
	Instructions   string               `json:"instructions,omitempty"`
	Location       *domain.Location     `json:"location,omitempty"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method,omitempty"`
	CanCheckout    bool                 `json:"can_checkout"`
	CanSend        bool                 `json:"can_send"`
	PaymentPending bool                 `json:"payment_pending"`
	Locating       bool                 `json:"locating"`
}

type dispatchFunc func(ctx context.Context, msg domain.OutboundMessage) error

// Session owns one cart and its checkout context. All mutations are serialized by mu,
// and async results are applied only if no cart mutation happened since they started.
type Session struct {
	id        string
	cfg       SessionConfig
	presenter port.ReceiptPresenter
	dispatch  dispatchFunc
	logger    *zap.Logger

	mu             sync.Mutex
	lines          *LineStore
	state          domain.CheckoutState
	address        string
	instructions   string
	location       *domain.Location
	method         domain.PaymentMethod
	receipt        *domain.Receipt
	epoch          uint64
	paymentPending bool
	locating       bool
	closed         bool

	subMu       sync.RWMutex
	subscribers []Subscriber
}

func newSession(id string, lines *LineStore, cfg SessionConfig, presenter port.ReceiptPresenter, dispatch dispatchFunc, logger *zap.Logger) *Session {
	s := &Session{
		id:        id,
		cfg:       cfg,
		presenter: presenter,
		dispatch:  dispatch,
		logger:    logger.With(zap.String("session_id", id)),
		lines:     lines,
		state:     domain.CheckoutStateEmpty,
	}
	if lines.Len() > 0 {
		s.state = domain.CheckoutStateBuilding
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Subscribe registers fn for every future event of this session.
func (s *Session) Subscribe(fn Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Session) publish(events *eventBuffer) {
	if len(*events) == 0 {
		return
	}
	s.subMu.RLock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, e := range *events {
		for _, fn := range subs {
			fn(e)
		}
	}
}

func (s *Session) State() domain.CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID:      s.id,
		State:          s.state,
		Order:          s.lines.Aggregate(),
		ItemCount:      s.lines.Len(),
		Address:        s.address,
		Instructions:   s.instructions,
		PaymentMethod:  s.method,
		CanCheckout:    s.lines.Len() > 0,
		CanSend:        s.state == domain.CheckoutStatePaymentVerified && s.lines.Len() > 0,
		PaymentPending: s.paymentPending,
		Locating:       s.locating,
	}
	if s.location != nil {
		loc := *s.location
		v.Location = &loc
	}
	return v
}

// Receipt returns the receipt generated by the last verified payment.
func (s *Session) Receipt() (domain.Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return domain.Receipt{}, false
	}
	return *s.receipt, true
}

// Add puts one unit of name at unitPrice in the cart.
func (s *Session) Add(ctx context.Context, name string, unitPrice domain.Money) error {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.cfg.Hours != nil && !s.cfg.Hours.IsOpen(s.cfg.now()) {
		return s.fail(&events, "add", domain.ErrStoreClosed)
	}
	entry, err := domain.NewLineEntry(name, unitPrice)
	if err != nil {
		return s.fail(&events, "add", err)
	}
	if existing, ok := s.lines.PriceOf(name); ok && !existing.UnitPrice.Equal(unitPrice) {
		return s.fail(&events, "add", fmt.Errorf("%w: %s at %s", domain.ErrPriceConflict, name, existing.UnitPrice))
	}

	s.persisted(&events, s.lines.Add(ctx, entry))
	s.cartChanged(&events, "add")
	s.notify(&events, fmt.Sprintf("✅ %s añadido al carrito", name))
	return nil
}

// RemoveOne drops a single unit of name. Removing a name not in the cart changes nothing.
func (s *Session) RemoveOne(ctx context.Context, name string) error {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	removed, err := s.lines.RemoveOne(ctx, name)
	if !removed {
		return nil
	}
	s.persisted(&events, err)
	s.cartChanged(&events, "remove")
	return nil
}

// Clear is allowed from every state and always ends in Empty.
func (s *Session) Clear(ctx context.Context) error {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	s.persisted(&events, s.lines.Clear(ctx))
	s.cartChanged(&events, "clear")
	s.notify(&events, "Carrito vacío")
	return nil
}

func (s *Session) SetAddress(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	s.address = address
	return nil
}

func (s *Session) SetInstructions(instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	s.instructions = instructions
	return nil
}

// BeginCheckout opens payment selection. Re-entering from AwaitingPayment resets the choice.
func (s *Session) BeginCheckout() error {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.lines.Len() == 0 {
		return s.fail(&events, "checkout", domain.ErrEmptyCart)
	}
	switch s.state {
	case domain.CheckoutStateBuilding, domain.CheckoutStateAwaitingPayment:
	default:
		return s.fail(&events, "checkout", fmt.Errorf("%w: checkout from %s", domain.ErrInvalidTransition, s.state))
	}

	s.epoch++
	s.paymentPending = false
	s.method = domain.PaymentMethodNone
	s.transition(&events, domain.CheckoutStateAwaitingPayment, "checkout")
	return nil
}

// ChooseQR selects a QR method; the payment is settled later by ConfirmQR.
func (s *Session) ChooseQR(method domain.PaymentMethod) error {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAwaitingPayment(); err != nil {
		return s.fail(&events, "choose_qr", err)
	}
	if !method.IsQR() {
		return s.fail(&events, "choose_qr", domain.ErrInvalidMethod)
	}
	s.method = method
	return nil
}

// ConfirmQR starts the simulated verification of the chosen QR payment.
func (s *Session) ConfirmQR() (<-chan PaymentOutcome, error) {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAwaitingPayment(); err != nil {
		return nil, s.fail(&events, "confirm_qr", err)
	}
	if s.paymentPending {
		return nil, domain.ErrPaymentPending
	}
	method := s.method
	if !method.IsQR() {
		method = domain.PaymentMethodQR
	}
	s.notify(&events, "Verificando pago...")
	return s.startVerification(method, s.cfg.QRDelay), nil
}

// SubmitCard validates the card synchronously, then starts simulated processing.
// A rejected card leaves the state and the selected method untouched.
func (s *Session) SubmitCard(card domain.Card) (<-chan PaymentOutcome, error) {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAwaitingPayment(); err != nil {
		return nil, s.fail(&events, "submit_card", err)
	}
	if s.paymentPending {
		return nil, domain.ErrPaymentPending
	}
	if err := card.Validate(); err != nil {
		return nil, s.fail(&events, "submit_card", err)
	}
	s.notify(&events, "Procesando pago con tarjeta...")
	return s.startVerification(domain.PaymentMethodCard, s.cfg.CardDelay), nil
}

func (s *Session) startVerification(method domain.PaymentMethod, delay time.Duration) <-chan PaymentOutcome {
	s.paymentPending = true
	epoch := s.epoch
	out := make(chan PaymentOutcome, 1)

	go func() {
		defer close(out)
		if delay > 0 {
			time.Sleep(delay)
		}
		out <- s.completeVerification(epoch, method)
	}()
	return out
}

func (s *Session) completeVerification(epoch uint64, method domain.PaymentMethod) PaymentOutcome {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch || s.state != domain.CheckoutStateAwaitingPayment {
		s.logger.Debug("discarding stale payment result", zap.String("method", string(method)))
		return PaymentOutcome{Method: method, Err: domain.ErrStalePayment}
	}

	s.paymentPending = false
	s.method = method
	s.transition(&events, domain.CheckoutStatePaymentVerified, "payment")
	if method == domain.PaymentMethodCard {
		s.notify(&events, "💳 Pago procesado con éxito. Generando boleta...")
	} else {
		s.notify(&events, "💳 Pago verificado. Generando boleta...")
	}

	receipt := domain.ComposeReceipt(s.lines.Aggregate(), domain.ReceiptInput{
		StoreName:     s.cfg.StoreName,
		Currency:      s.cfg.Currency,
		PaymentMethod: method,
		Address:       s.address,
		Location:      s.location,
		IssuedAt:      s.cfg.now(),
		TimeLayout:    s.cfg.TimeLayout,
	})
	s.receipt = &receipt
	events.add(Event{SessionID: s.id, Kind: EventReceipt, State: s.state, Op: "payment"})

	outcome := PaymentOutcome{Method: method, Receipt: &receipt}
	if s.presenter != nil {
		if err := s.presenter.Present(context.Background(), s.id, receipt); err != nil {
			if !errors.Is(err, domain.ErrPresentationBlocked) {
				err = fmt.Errorf("%w: %v", domain.ErrPresentationBlocked, err)
			}
			outcome.PresentErr = err
			s.logger.Warn("receipt presentation failed", zap.Error(err))
			s.notify(&events, domain.Notice(err))
		}
	}
	return outcome
}

// CaptureLocation asks locator for the shopper's position. The result also overwrites the
// delivery address with a readable coordinate line.
func (s *Session) CaptureLocation(ctx context.Context, locator port.Locator) (<-chan LocationOutcome, error) {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if locator == nil {
		return nil, s.fail(&events, "locate", domain.ErrGeolocationUnavailable)
	}
	if s.locating {
		return nil, domain.ErrLocationPending
	}
	s.locating = true

	out := make(chan LocationOutcome, 1)
	locateCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		loc, err := locator.Locate(locateCtx)
		out <- s.completeLocation(loc, err)
	}()
	return out, nil
}

func (s *Session) completeLocation(loc domain.Location, err error) LocationOutcome {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locating = false
	if s.closed {
		return LocationOutcome{Err: domain.ErrSessionClosed}
	}
	if err != nil {
		if !errors.Is(err, domain.ErrGeolocationUnavailable) && !errors.Is(err, domain.ErrGeolocationDenied) {
			err = fmt.Errorf("%w: %v", domain.ErrGeolocationDenied, err)
		}
		return LocationOutcome{Err: s.fail(&events, "locate", err)}
	}

	s.location = &loc
	s.address = fmt.Sprintf("📍 Ubicación: %.4f, %.4f", loc.Latitude, loc.Longitude)
	s.notify(&events, "Ubicación capturada")
	return LocationOutcome{Location: loc}
}

// Send hands the composed order to the outbound channel. It requires a verified payment,
// a destination (address or location) and a non-empty order. The cart is kept.
func (s *Session) Send(ctx context.Context) (domain.OutboundMessage, error) {
	var events eventBuffer
	defer s.publish(&events)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.OutboundMessage{}, domain.ErrSessionClosed
	}
	if s.state != domain.CheckoutStatePaymentVerified {
		return domain.OutboundMessage{}, s.fail(&events, "send", domain.ErrPaymentRequired)
	}
	if strings.TrimSpace(s.address) == "" && s.location == nil {
		return domain.OutboundMessage{}, s.fail(&events, "send", domain.ErrMissingDestination)
	}
	order := s.lines.Aggregate()
	if order.IsEmpty() {
		return domain.OutboundMessage{}, s.fail(&events, "send", domain.ErrEmptyCart)
	}

	encoded := domain.ComposeMessage(order, domain.MessageInput{
		StoreName:     s.cfg.StoreName,
		Currency:      s.cfg.Currency,
		Address:       s.address,
		Instructions:  s.instructions,
		Location:      s.location,
		PaymentMethod: s.method,
	})
	if encoded == "" {
		return domain.OutboundMessage{}, s.fail(&events, "send", domain.ErrComposeMessage)
	}

	msg := domain.NewOutboundMessage(s.id, s.cfg.Destination, encoded)
	if s.dispatch != nil {
		if err := s.dispatch(ctx, msg); err != nil {
			return domain.OutboundMessage{}, fmt.Errorf("dispatch message: %w", err)
		}
	}

	s.transition(&events, domain.CheckoutStateSent, "send")
	events.add(Event{SessionID: s.id, Kind: EventSent, State: s.state, Op: "send"})
	return msg, nil
}

// Close disposes the session; later operations fail with ErrSessionClosed and pending
// async results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.epoch++
	s.mu.Unlock()

	s.subMu.Lock()
	s.subscribers = nil
	s.subMu.Unlock()
}

func (s *Session) requireAwaitingPayment() error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.lines.Len() == 0 {
		return domain.ErrEmptyCart
	}
	if s.state != domain.CheckoutStateAwaitingPayment {
		return fmt.Errorf("%w: payment from %s", domain.ErrInvalidTransition, s.state)
	}
	return nil
}

// cartChanged invalidates any chosen or verified payment and settles Empty/Building.
func (s *Session) cartChanged(events *eventBuffer, op string) {
	s.epoch++
	s.paymentPending = false
	s.method = domain.PaymentMethodNone
	s.receipt = nil

	events.add(Event{SessionID: s.id, Kind: EventCartChanged, State: s.state, Op: op})
	if s.lines.Len() == 0 {
		s.transition(events, domain.CheckoutStateEmpty, op)
	} else {
		s.transition(events, domain.CheckoutStateBuilding, op)
	}
}

func (s *Session) transition(events *eventBuffer, to domain.CheckoutState, op string) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.logger.Debug("checkout transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("op", op),
	)
	events.add(Event{SessionID: s.id, Kind: EventStateChanged, From: from, State: to, Op: op})
}

func (s *Session) notify(events *eventBuffer, text string) {
	events.add(Event{SessionID: s.id, Kind: EventNotice, State: s.state, Notice: text})
}

func (s *Session) fail(events *eventBuffer, op string, err error) error {
	s.logger.Info("operation rejected", zap.String("op", op), zap.Error(err))
	events.add(Event{SessionID: s.id, Kind: EventNotice, State: s.state, Op: op, Notice: domain.Notice(err), Err: err})
	return err
}

func (s *Session) persisted(events *eventBuffer, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("cart not persisted", zap.Error(err))
	events.add(Event{SessionID: s.id, Kind: EventNotice, State: s.state, Op: "save", Notice: "No se pudo guardar el carrito", Err: err})
}
