package presenter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

// Archive keeps the latest receipt of every session so it can be fetched and printed.
// A blocked archive refuses every receipt, like a browser that blocks pop-ups.
type Archive struct {
	mu       sync.RWMutex
	blocked  bool
	receipts map[string]domain.Receipt
}

func NewArchive(blocked bool) *Archive {
	return &Archive{blocked: blocked, receipts: make(map[string]domain.Receipt)}
}

func (a *Archive) Present(_ context.Context, sessionID string, receipt domain.Receipt) error {
	if a.blocked {
		return domain.ErrPresentationBlocked
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts[sessionID] = receipt
	return nil
}

func (a *Archive) Get(sessionID string) (domain.Receipt, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.receipts[sessionID]
	return r, ok
}

func (a *Archive) Forget(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.receipts, sessionID)
}

// Directory writes each receipt to <dir>/<session>.html.
type Directory struct {
	dir string
}

func NewDirectory(dir string) *Directory {
	return &Directory{dir: dir}
}

func (d *Directory) Present(_ context.Context, sessionID string, receipt domain.Receipt) error {
	var buf bytes.Buffer
	if err := receipt.RenderHTML(&buf); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPresentationBlocked, err)
	}
	if err := os.WriteFile(d.Path(sessionID), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPresentationBlocked, err)
	}
	return nil
}

func (d *Directory) Path(sessionID string) string {
	return filepath.Join(d.dir, filepath.Base(sessionID)+".html")
}

// Chain presents to every presenter in order and stops at the first failure.
func Chain(presenters ...port.ReceiptPresenter) port.ReceiptPresenter {
	return chain(presenters)
}

type chain []port.ReceiptPresenter

func (c chain) Present(ctx context.Context, sessionID string, receipt domain.Receipt) error {
	for _, p := range c {
		if err := p.Present(ctx, sessionID, receipt); err != nil {
			return err
		}
	}
	return nil
}
