package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

func TestFixed(t *testing.T) {
	want := domain.Location{Latitude: -12.0464, Longitude: -77.0428}
	got, err := Fixed{Location: want}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDenied(t *testing.T) {
	_, err := Denied{}.Locate(context.Background())
	assert.ErrorIs(t, err, domain.ErrGeolocationDenied)
}
