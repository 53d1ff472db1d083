package presenter

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

func sampleReceipt() domain.Receipt {
	return domain.Receipt{
		StoreName:     "ByteFood",
		Lines:         []domain.ReceiptLine{{Name: "Burger", Quantity: 2, Subtotal: "S/25.00"}},
		Total:         "S/25.00",
		PaymentMethod: "Yape",
		Address:       "No proporcionada",
	}
}

func TestArchive_StoresLatest(t *testing.T) {
	a := NewArchive(false)
	require.NoError(t, a.Present(context.Background(), "s1", sampleReceipt()))

	r, ok := a.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "S/25.00", r.Total)

	a.Forget("s1")
	_, ok = a.Get("s1")
	assert.False(t, ok)
}

func TestArchive_Blocked(t *testing.T) {
	a := NewArchive(true)
	err := a.Present(context.Background(), "s1", sampleReceipt())
	assert.ErrorIs(t, err, domain.ErrPresentationBlocked)
}

func TestDirectory_WritesHTML(t *testing.T) {
	d := NewDirectory(t.TempDir())
	require.NoError(t, d.Present(context.Background(), "s1", sampleReceipt()))

	b, err := os.ReadFile(d.Path("s1"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "Método de pago: Yape"))
}

func TestChain_StopsAtFirstFailure(t *testing.T) {
	open := NewArchive(false)
	blocked := NewArchive(true)
	after := NewArchive(false)

	err := Chain(open, blocked, after).Present(context.Background(), "s1", sampleReceipt())
	require.ErrorIs(t, err, domain.ErrPresentationBlocked)

	_, ok := open.Get("s1")
	assert.True(t, ok)
	_, ok = after.Get("s1")
	assert.False(t, ok)
}
