package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

// Mock LineRepository
type mockLineRepo struct {
	mu      sync.Mutex
	data    map[string][]domain.LineEntry
	loadErr error
	saveErr error
	saves   int
}

func newMockLineRepo() *mockLineRepo {
	return &mockLineRepo{data: make(map[string][]domain.LineEntry)}
}

func (m *mockLineRepo) Load(ctx context.Context, key string) ([]domain.LineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]domain.LineEntry(nil), m.data[key]...), nil
}

func (m *mockLineRepo) Save(ctx context.Context, key string, entries []domain.LineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = append([]domain.LineEntry(nil), entries...)
	return nil
}

func (m *mockLineRepo) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockLineRepo) stored(key string) []domain.LineEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

// Mock ReceiptPresenter
type mockPresenter struct {
	mu       sync.Mutex
	err      error
	receipts map[string]domain.Receipt
}

func newMockPresenter(err error) *mockPresenter {
	return &mockPresenter{err: err, receipts: make(map[string]domain.Receipt)}
}

func (p *mockPresenter) Present(ctx context.Context, sessionID string, receipt domain.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.receipts[sessionID] = receipt
	return nil
}

type mockLocator struct {
	loc domain.Location
	err error
}

func (l mockLocator) Locate(ctx context.Context) (domain.Location, error) {
	return l.loc, l.err
}

func testConfig() SessionConfig {
	return SessionConfig{
		StoreName:   "ByteFood",
		Currency:    "S/",
		Destination: "+51964306693",
	}
}

func newTestService(repo *mockLineRepo, presenter *mockPresenter, cfg SessionConfig) *CheckoutService {
	return NewCheckoutService(repo, presenter, cfg, 16)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fillCart(t *testing.T, sess *Session) {
	t.Helper()
	ctx := context.Background()
	for _, item := range []struct{ name, price string }{
		{"Burger", "12.50"}, {"Burger", "12.50"}, {"Fries", "4.00"},
	} {
		if err := sess.Add(ctx, item.name, price(item.price)); err != nil {
			t.Fatalf("add %s: %v", item.name, err)
		}
	}
}

func payQR(t *testing.T, sess *Session, method domain.PaymentMethod) PaymentOutcome {
	t.Helper()
	if err := sess.BeginCheckout(); err != nil {
		t.Fatalf("begin checkout: %v", err)
	}
	if err := sess.ChooseQR(method); err != nil {
		t.Fatalf("choose qr: %v", err)
	}
	pending, err := sess.ConfirmQR()
	if err != nil {
		t.Fatalf("confirm qr: %v", err)
	}
	return waitPayment(t, pending)
}

func waitPayment(t *testing.T, pending <-chan PaymentOutcome) PaymentOutcome {
	t.Helper()
	select {
	case outcome := <-pending:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("payment never resolved")
	}
	return PaymentOutcome{}
}

func openSession(t *testing.T, svc *CheckoutService) *Session {
	t.Helper()
	sess, err := svc.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return sess
}

func TestSession_QRHappyPath(t *testing.T) {
	presenter := newMockPresenter(nil)
	svc := newTestService(newMockLineRepo(), presenter, testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")

	outcome := payQR(t, sess, domain.PaymentMethodYape)
	if outcome.Err != nil || outcome.PresentErr != nil {
		t.Fatalf("expected verified payment, got %+v", outcome)
	}
	if sess.State() != domain.CheckoutStatePaymentVerified {
		t.Fatalf("expected payment_verified, got %s", sess.State())
	}
	if outcome.Receipt == nil || outcome.Receipt.Total != "S/29.00" || outcome.Receipt.PaymentMethod != "Yape" {
		t.Fatalf("unexpected receipt %+v", outcome.Receipt)
	}
	if _, ok := presenter.receipts[sess.ID()]; !ok {
		t.Error("receipt was not presented")
	}

	msg, err := sess.Send(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sess.State() != domain.CheckoutStateSent {
		t.Errorf("expected sent, got %s", sess.State())
	}

	const prefix = "https://wa.me/51964306693?text="
	if !strings.HasPrefix(msg.URL, prefix) {
		t.Fatalf("unexpected url %s", msg.URL)
	}
	text, err := url.PathUnescape(strings.TrimPrefix(msg.URL, prefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "Hola ByteFood! 🍔 Vengo de la web y quiero realizar el siguiente pedido: " +
		"Burger x2 - Fries x1 - Total: S/29.00. Dirección: Av. Central 123. Método de pago: Yape."
	if text != want {
		t.Errorf("message mismatch:\n got %q\nwant %q", text, want)
	}

	select {
	case queued := <-svc.GetOutboundQueue():
		if queued.URL != msg.URL {
			t.Errorf("queued url mismatch")
		}
	default:
		t.Error("message was not queued")
	}

	if sess.View().ItemCount != 3 {
		t.Error("cart must survive send")
	}
}

func TestSession_SendRequiresPayment(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")

	if _, err := sess.Send(context.Background()); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
	if sess.State() != domain.CheckoutStateBuilding {
		t.Errorf("state changed to %s", sess.State())
	}
	if len(svc.GetOutboundQueue()) != 0 {
		t.Error("nothing should be queued")
	}
}

func TestSession_SendRequiresDestination(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("   ")
	payQR(t, sess, domain.PaymentMethodPlin)

	if _, err := sess.Send(context.Background()); !errors.Is(err, domain.ErrMissingDestination) {
		t.Fatalf("expected ErrMissingDestination, got %v", err)
	}
	if sess.State() != domain.CheckoutStatePaymentVerified {
		t.Errorf("state changed to %s", sess.State())
	}
}

func TestSession_SendAgainAfterSent(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")
	payQR(t, sess, domain.PaymentMethodQR)

	if _, err := sess.Send(context.Background()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := sess.Send(context.Background()); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Errorf("expected ErrPaymentRequired on second send, got %v", err)
	}
}

func TestSession_CardRejectedKeepsState(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	if err := sess.BeginCheckout(); err != nil {
		t.Fatal(err)
	}

	_, err := sess.SubmitCard(domain.Card{Number: "4111 1111 1111 1111", Expiry: "09/99"})
	var cardErr *domain.InvalidCardFieldError
	if !errors.As(err, &cardErr) || cardErr.Field != domain.CardFieldCVV {
		t.Fatalf("expected invalid cvv, got %v", err)
	}

	v := sess.View()
	if v.State != domain.CheckoutStateAwaitingPayment {
		t.Errorf("expected awaiting_payment, got %s", v.State)
	}
	if v.PaymentMethod != domain.PaymentMethodNone {
		t.Errorf("method must stay unset, got %q", v.PaymentMethod)
	}
}

func TestSession_CardPayment(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")
	if err := sess.BeginCheckout(); err != nil {
		t.Fatal(err)
	}

	pending, err := sess.SubmitCard(domain.Card{Number: "4111 1111 1111 1111", Expiry: "12/30", CVV: "123"})
	if err != nil {
		t.Fatalf("submit card: %v", err)
	}
	outcome := waitPayment(t, pending)
	if outcome.Err != nil || outcome.Method != domain.PaymentMethodCard {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if sess.View().PaymentMethod != domain.PaymentMethodCard {
		t.Error("method should be Tarjeta")
	}
}

func TestSession_CartChangeInvalidatesPayment(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")
	payQR(t, sess, domain.PaymentMethodYape)

	if err := sess.Add(context.Background(), "Soda", price("3.00")); err != nil {
		t.Fatal(err)
	}

	v := sess.View()
	if v.State != domain.CheckoutStateBuilding {
		t.Errorf("expected building, got %s", v.State)
	}
	if v.PaymentMethod != domain.PaymentMethodNone {
		t.Errorf("payment method should reset, got %q", v.PaymentMethod)
	}
	if _, ok := sess.Receipt(); ok {
		t.Error("receipt should be dropped")
	}
	if _, err := sess.Send(context.Background()); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Errorf("expected ErrPaymentRequired, got %v", err)
	}
}

func TestSession_StalePaymentIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.CardDelay = 50 * time.Millisecond
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), cfg)
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	if err := sess.BeginCheckout(); err != nil {
		t.Fatal(err)
	}
	pending, err := sess.SubmitCard(domain.Card{Number: "4111111111111111", Expiry: "12/30", CVV: "123"})
	if err != nil {
		t.Fatal(err)
	}
	if !sess.View().PaymentPending {
		t.Error("payment should be pending")
	}

	if err := sess.RemoveOne(context.Background(), "Fries"); err != nil {
		t.Fatal(err)
	}

	outcome := waitPayment(t, pending)
	if !errors.Is(outcome.Err, domain.ErrStalePayment) {
		t.Fatalf("expected stale payment, got %+v", outcome)
	}
	if sess.State() != domain.CheckoutStateBuilding {
		t.Errorf("expected building, got %s", sess.State())
	}
}

func TestSession_SecondSubmitWhilePending(t *testing.T) {
	cfg := testConfig()
	cfg.QRDelay = 50 * time.Millisecond
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), cfg)
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	if err := sess.BeginCheckout(); err != nil {
		t.Fatal(err)
	}
	pending, err := sess.ConfirmQR()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.ConfirmQR(); !errors.Is(err, domain.ErrPaymentPending) {
		t.Errorf("expected ErrPaymentPending, got %v", err)
	}

	outcome := waitPayment(t, pending)
	if outcome.Method != domain.PaymentMethodQR {
		t.Errorf("unselected qr should settle as QR, got %q", outcome.Method)
	}
}

func TestSession_RemoveMissingIsNoop(t *testing.T) {
	repo := newMockLineRepo()
	svc := newTestService(repo, newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")
	payQR(t, sess, domain.PaymentMethodYape)
	saves := repo.saves

	if err := sess.RemoveOne(context.Background(), "Pizza"); err != nil {
		t.Fatal(err)
	}
	if sess.State() != domain.CheckoutStatePaymentVerified {
		t.Errorf("state changed to %s", sess.State())
	}
	if repo.saves != saves {
		t.Error("no-op remove must not persist")
	}
}

func TestSession_RemoveOneDropsSingleUnit(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)

	if err := sess.RemoveOne(context.Background(), "Burger"); err != nil {
		t.Fatal(err)
	}
	order := sess.View().Order
	if order.Lines[0].Quantity != 1 || order.Total.StringFixed(2) != "16.50" {
		t.Errorf("unexpected order %+v", order)
	}

	ctx := context.Background()
	sess.RemoveOne(ctx, "Burger")
	sess.RemoveOne(ctx, "Fries")
	if sess.State() != domain.CheckoutStateEmpty {
		t.Errorf("expected empty, got %s", sess.State())
	}
}

func TestSession_ClearFromAnyState(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")
	payQR(t, sess, domain.PaymentMethodYape)

	if err := sess.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := sess.View()
	if v.State != domain.CheckoutStateEmpty || v.ItemCount != 0 {
		t.Errorf("expected empty cart, got %+v", v)
	}
	if v.Address != "Av. Central 123" {
		t.Error("clear keeps delivery details")
	}
	if !v.Order.Total.IsZero() {
		t.Error("total should be zero")
	}
}

func TestSession_BeginCheckoutGuards(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	if err := sess.BeginCheckout(); !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}

	fillCart(t, sess)
	sess.SetAddress("x")
	payQR(t, sess, domain.PaymentMethodYape)
	if err := sess.BeginCheckout(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSession_ReenterCheckoutResetsMethod(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.BeginCheckout()
	if err := sess.ChooseQR(domain.PaymentMethodPlin); err != nil {
		t.Fatal(err)
	}
	if err := sess.BeginCheckout(); err != nil {
		t.Fatal(err)
	}
	if sess.View().PaymentMethod != domain.PaymentMethodNone {
		t.Error("re-entering checkout should reset the method")
	}
	if err := sess.ChooseQR(domain.PaymentMethodCard); !errors.Is(err, domain.ErrInvalidMethod) {
		t.Errorf("card is not a qr method, got %v", err)
	}
}

func TestSession_PaymentOutsideCheckout(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	if _, err := sess.ConfirmQR(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := sess.SubmitCard(domain.Card{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSession_BlockedPresenterStillVerifies(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(domain.ErrPresentationBlocked), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)

	var notices []string
	var mu sync.Mutex
	sess.Subscribe(func(e Event) {
		if e.Kind == EventNotice {
			mu.Lock()
			notices = append(notices, e.Notice)
			mu.Unlock()
		}
	})

	outcome := payQR(t, sess, domain.PaymentMethodYape)
	if !errors.Is(outcome.PresentErr, domain.ErrPresentationBlocked) {
		t.Fatalf("expected presentation error, got %+v", outcome)
	}
	if sess.State() != domain.CheckoutStatePaymentVerified {
		t.Errorf("payment should still be verified, got %s", sess.State())
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, n := range notices {
		if n == "No se pudo abrir la boleta (pop-ups bloqueados)" {
			found = true
		}
	}
	if !found {
		t.Errorf("blocked notice missing from %v", notices)
	}
}

func TestSession_CaptureLocation(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")

	pending, err := sess.CaptureLocation(context.Background(), mockLocator{loc: domain.Location{Latitude: -12.04641, Longitude: -77.04279}})
	if err != nil {
		t.Fatal(err)
	}
	if outcome := <-pending; outcome.Err != nil {
		t.Fatalf("locate: %v", outcome.Err)
	}

	v := sess.View()
	if v.Location == nil || v.Location.Latitude != -12.04641 {
		t.Fatalf("location not stored: %+v", v.Location)
	}
	if v.Address != "📍 Ubicación: -12.0464, -77.0428" {
		t.Errorf("address not overwritten: %q", v.Address)
	}

	payQR(t, sess, domain.PaymentMethodYape)
	msg, err := sess.Send(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	text, _ := url.PathUnescape(msg.Text)
	if !strings.Contains(text, "Mi ubicación es: https://www.google.com/maps?q=-12.04641,-77.04279") {
		t.Errorf("maps link missing: %s", text)
	}
}

func TestSession_LocationOnlyIsEnoughToSend(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	fillCart(t, sess)
	pending, _ := sess.CaptureLocation(context.Background(), mockLocator{loc: domain.Location{Latitude: 1, Longitude: 2}})
	<-pending
	sess.SetAddress("")
	payQR(t, sess, domain.PaymentMethodYape)

	if _, err := sess.Send(context.Background()); err != nil {
		t.Errorf("location alone should allow send, got %v", err)
	}
}

func TestSession_CaptureLocationFailures(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	if _, err := sess.CaptureLocation(context.Background(), nil); !errors.Is(err, domain.ErrGeolocationUnavailable) {
		t.Errorf("expected ErrGeolocationUnavailable, got %v", err)
	}

	pending, err := sess.CaptureLocation(context.Background(), mockLocator{err: errors.New("timeout")})
	if err != nil {
		t.Fatal(err)
	}
	if outcome := <-pending; !errors.Is(outcome.Err, domain.ErrGeolocationDenied) {
		t.Errorf("expected ErrGeolocationDenied, got %v", outcome.Err)
	}
	if sess.View().Location != nil {
		t.Error("failed capture must not set a location")
	}
}

func TestSession_StoreClosedRejectsAdd(t *testing.T) {
	cfg := testConfig()
	hours := domain.DefaultHours()
	cfg.Hours = &hours
	cfg.Now = func() time.Time { return time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC) }
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), cfg)
	defer svc.Close()

	sess := openSession(t, svc)
	if err := sess.Add(context.Background(), "Burger", price("12.50")); !errors.Is(err, domain.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if sess.State() != domain.CheckoutStateEmpty {
		t.Errorf("state changed to %s", sess.State())
	}
}

func TestSession_PriceConflict(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	ctx := context.Background()
	if err := sess.Add(ctx, "Burger", price("12.50")); err != nil {
		t.Fatal(err)
	}
	if err := sess.Add(ctx, "Burger", price("12.5")); err != nil {
		t.Errorf("same price with another scale should be accepted: %v", err)
	}
	if err := sess.Add(ctx, "Burger", price("13.00")); !errors.Is(err, domain.ErrPriceConflict) {
		t.Errorf("expected ErrPriceConflict, got %v", err)
	}
	if err := sess.Add(ctx, "", price("1.00")); !errors.Is(err, domain.ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem, got %v", err)
	}
}

func TestSession_SaveFailureKeepsCart(t *testing.T) {
	repo := newMockLineRepo()
	repo.saveErr = errors.New("disk full")
	svc := newTestService(repo, newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	var notices []string
	sess.Subscribe(func(e Event) {
		if e.Kind == EventNotice && e.Op == "save" {
			notices = append(notices, e.Notice)
		}
	})

	if err := sess.Add(context.Background(), "Burger", price("12.50")); err != nil {
		t.Fatalf("add should succeed in memory: %v", err)
	}
	if sess.View().ItemCount != 1 {
		t.Error("entry should be kept in memory")
	}
	if len(notices) != 1 || notices[0] != "No se pudo guardar el carrito" {
		t.Errorf("expected save notice, got %v", notices)
	}
}

func TestSession_EventsFollowTransitions(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	var mu sync.Mutex
	var states []domain.CheckoutState
	sess.Subscribe(func(e Event) {
		if e.Kind != EventStateChanged {
			return
		}
		// subscribers may read the session while being notified
		if sess.State() != e.State {
			t.Errorf("event state %s differs from session state %s", e.State, sess.State())
		}
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	})

	fillCart(t, sess)
	sess.SetAddress("Av. Central 123")
	payQR(t, sess, domain.PaymentMethodYape)
	if _, err := sess.Send(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []domain.CheckoutState{
		domain.CheckoutStateBuilding,
		domain.CheckoutStateAwaitingPayment,
		domain.CheckoutStatePaymentVerified,
		domain.CheckoutStateSent,
	}
	if len(states) != len(want) {
		t.Fatalf("expected %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], states[i])
		}
	}
}

func TestSession_ConcurrentAdds(t *testing.T) {
	repo := newMockLineRepo()
	svc := newTestService(repo, newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Add(context.Background(), "Burger", price("12.50"))
		}()
	}
	wg.Wait()

	v := sess.View()
	if v.ItemCount != 50 || v.Order.Total.StringFixed(2) != "625.00" {
		t.Errorf("expected 50 burgers totalling 625.00, got %d / %s", v.ItemCount, v.Order.Total)
	}
	if len(repo.stored(DefaultCartKey+":"+sess.ID())) != 50 {
		t.Error("persisted snapshot should hold every entry")
	}
}

func TestSession_ClosedRejectsEverything(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	sess := openSession(t, svc)
	id := sess.ID()
	if err := svc.Dispose(context.Background(), id, false); err != nil {
		t.Fatal(err)
	}

	if err := sess.Add(context.Background(), "Burger", price("1.00")); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if _, err := sess.Send(context.Background()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := sess.SetAddress("Av. Central 123"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed from SetAddress, got %v", err)
	}
	if err := sess.SetInstructions("Sin cebolla"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed from SetInstructions, got %v", err)
	}
	if v := sess.View(); v.Address != "" || v.Instructions != "" {
		t.Errorf("closed session must not record delivery details, got %q / %q", v.Address, v.Instructions)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("session ids should be uuids: %v", err)
	}
}

func TestSession_TotalTracksEntriesThroughMixedSequence(t *testing.T) {
	svc := newTestService(newMockLineRepo(), newMockPresenter(nil), testConfig())
	defer svc.Close()

	ctx := context.Background()
	sess := openSession(t, svc)

	steps := []struct {
		op    string
		name  string
		price string
	}{
		{"add", "Burger", "12.50"},
		{"add", "Fries", "4.00"},
		{"add", "Burger", "12.50"},
		{"remove", "Fries", ""},
		{"remove", "Soda", ""},
		{"add", "Soda", "3.25"},
		{"add", "Fries", "4.00"},
		{"clear", "", ""},
		{"add", "Soda", "3.25"},
		{"add", "Burger", "12.50"},
		{"remove", "Burger", ""},
		{"add", "Soda", "3.25"},
		{"remove", "Soda", ""},
	}

	for i, step := range steps {
		var err error
		switch step.op {
		case "add":
			err = sess.Add(ctx, step.name, price(step.price))
		case "remove":
			err = sess.RemoveOne(ctx, step.name)
		case "clear":
			err = sess.Clear(ctx)
		}
		if err != nil {
			t.Fatalf("step %d %s %s: %v", i, step.op, step.name, err)
		}

		sum := decimal.Zero
		entries := sess.lines.Entries()
		for _, e := range entries {
			sum = sum.Add(e.UnitPrice)
		}
		v := sess.View()
		if !v.Order.Total.Equal(sum) {
			t.Errorf("step %d: total %s, entries sum %s", i, v.Order.Total, sum)
		}
		if v.ItemCount != len(entries) {
			t.Errorf("step %d: item count %d, entries %d", i, v.ItemCount, len(entries))
		}
	}

	if got := sess.View().Order.Total.StringFixed(2); got != "3.25" {
		t.Errorf("expected final total 3.25, got %s", got)
	}
}
