package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

// DefaultCartKey names the persisted cart slot; each session appends its id.
const DefaultCartKey = "menu_cart_v1"

// CheckoutService keeps the live sessions and the queue of accepted outbound messages.
type CheckoutService struct {
	repo      port.LineRepository
	presenter port.ReceiptPresenter
	cfg       SessionConfig
	cartKey   string
	logger    *zap.Logger

	mu          sync.RWMutex
	sessions    map[string]*Session
	subscribers []Subscriber
	closed      bool

	// sendMu keeps close(outbound) from racing an in-flight send; mu is never held while sending.
	sendMu   sync.RWMutex
	outbound chan domain.OutboundMessage
	done     chan struct{}
	once     sync.Once
}

type Option func(*CheckoutService)

func WithCartKey(key string) Option {
	return func(s *CheckoutService) {
		if key != "" {
			s.cartKey = key
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *CheckoutService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCheckoutService(repo port.LineRepository, presenter port.ReceiptPresenter, cfg SessionConfig, queueSize int, opts ...Option) *CheckoutService {
	s := &CheckoutService{
		repo:      repo,
		presenter: presenter,
		cfg:       cfg,
		cartKey:   DefaultCartKey,
		logger:    zap.NewNop(),
		sessions:  make(map[string]*Session),
		outbound:  make(chan domain.OutboundMessage, queueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns the live session for id, restoring it from persistence if needed.
// An empty id starts a new session. Ids must be UUIDs.
func (s *CheckoutService) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if sess, err := s.lookup(id); sess != nil || err != nil {
		return sess, err
	}

	lines := NewLineStore(s.repo, s.cartKey+":"+id)
	if err := lines.Restore(ctx); err != nil {
		// the cart starts empty; a bad snapshot never blocks the shopper
		s.logger.Warn("cart restore failed", zap.String("session_id", id), zap.Error(err))
	}
	return s.register(id, lines)
}

// Resume returns the live session for id, or restores it when a cart was persisted
// under id. Unlike Open it never creates a session for an id nobody has used.
func (s *CheckoutService) Resume(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if sess, err := s.lookup(id); sess != nil || err != nil {
		return sess, err
	}

	lines := NewLineStore(s.repo, s.cartKey+":"+id)
	err := lines.Restore(ctx)
	if err == nil && lines.Len() == 0 {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		s.logger.Warn("cart restore failed", zap.String("session_id", id), zap.Error(err))
	}
	return s.register(id, lines)
}

func (s *CheckoutService) Get(id string) (*Session, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *CheckoutService) lookup(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	return s.sessions[id], nil
}

// register stores a restored session unless another caller won the race for id.
func (s *CheckoutService) register(id string, lines *LineStore) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	sess := newSession(id, lines, s.cfg, s.presenter, s.enqueue, s.logger)
	for _, fn := range s.subscribers {
		sess.Subscribe(fn)
	}
	s.sessions[id] = sess
	s.logger.Debug("session opened", zap.String("session_id", id), zap.Int("restored_lines", lines.Len()))
	return sess, nil
}

// Dispose closes a session. With forget set the persisted cart is removed too.
func (s *CheckoutService) Dispose(ctx context.Context, id string, forget bool) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.Close()
	if forget {
		if err := sess.lines.Discard(ctx); err != nil {
			return fmt.Errorf("discard cart: %w", err)
		}
	}
	return nil
}

// Subscribe registers fn on every current and future session.
func (s *CheckoutService) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
	for _, sess := range s.sessions {
		sess.Subscribe(fn)
	}
}

func (s *CheckoutService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// GetOutboundQueue is drained by the delivery workers.
func (s *CheckoutService) GetOutboundQueue() <-chan domain.OutboundMessage {
	return s.outbound
}

func (s *CheckoutService) enqueue(ctx context.Context, msg domain.OutboundMessage) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	select {
	case <-s.done:
		return domain.ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return domain.ErrSessionClosed
	}
}

// Close stops accepting sends, disposes every session and closes the outbound queue.
func (s *CheckoutService) Close() {
	s.once.Do(func() {
		close(s.done)

		s.sendMu.Lock()
		close(s.outbound)
		s.sendMu.Unlock()

		s.mu.Lock()
		s.closed = true
		sessions := s.sessions
		s.sessions = make(map[string]*Session)
		s.mu.Unlock()

		for _, sess := range sessions {
			sess.Close()
		}
	})
}

// IsNotice reports whether err is a shopper-facing rejection rather than an infrastructure failure.
func IsNotice(err error) bool {
	for _, target := range []error{
		domain.ErrEmptyCart,
		domain.ErrPaymentRequired,
		domain.ErrMissingDestination,
		domain.ErrGeolocationUnavailable,
		domain.ErrGeolocationDenied,
		domain.ErrStoreClosed,
		domain.ErrInvalidItem,
		domain.ErrPriceConflict,
		domain.ErrInvalidTransition,
		domain.ErrInvalidMethod,
		domain.ErrPaymentPending,
		domain.ErrLocationPending,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return domain.IsInvalidCard(err)
}
