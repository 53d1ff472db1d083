package geo

import (
	"context"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

// Fixed resolves to a position reported by the client device.
type Fixed struct {
	Location domain.Location
}

func (f Fixed) Locate(context.Context) (domain.Location, error) {
	return f.Location, nil
}

// Denied stands in for a device whose user refused to share the position.
type Denied struct{}

func (Denied) Locate(context.Context) (domain.Location, error) {
	return domain.Location{}, domain.ErrGeolocationDenied
}
