package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

// LogOpener only records the link; the shopper's browser opens it from the API response.
type LogOpener struct {
	logger *zap.Logger
}

func NewLogOpener(logger *zap.Logger) *LogOpener {
	return &LogOpener{logger: logger}
}

func (o *LogOpener) Deliver(_ context.Context, msg domain.OutboundMessage) error {
	o.logger.Info("order message ready",
		zap.String("session_id", msg.SessionID),
		zap.String("destination", msg.Destination),
		zap.String("url", msg.URL),
	)
	return nil
}

// HTTPOpener opens the link server side. The response body is discarded.
type HTTPOpener struct {
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewHTTPOpener(client *http.Client, logger *zap.Logger) *HTTPOpener {
	settings := gobreaker.Settings{
		Name:        "OutboundChannel",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &HTTPOpener{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

func (o *HTTPOpener) Deliver(ctx context.Context, msg domain.OutboundMessage) error {
	_, err := o.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := o.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("channel responded %d", resp.StatusCode)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		o.logger.Warn("Circuit breaker open, message dropped", zap.String("session_id", msg.SessionID))
	}
	return err
}

// Recorder keeps every delivered message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []domain.OutboundMessage
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Deliver(_ context.Context, msg domain.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Messages() []domain.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OutboundMessage(nil), r.messages...)
}
