package port

import (
	"context"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

type OutboundChannel interface {
	// Deliver opens the message link; nothing is read back from the channel
	Deliver(ctx context.Context, msg domain.OutboundMessage) error
}

type ReceiptPresenter interface {
	// Present opens the receipt on a detached surface, domain.ErrPresentationBlocked if refused
	Present(ctx context.Context, sessionID string, receipt domain.Receipt) error
}

type Locator interface {
	// Locate resolves the shopper's position once
	Locate(ctx context.Context) (domain.Location, error)
}
