package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phantom-eng/bytefood-web/internal/adapter/channel"
	"github.com/phantom-eng/bytefood-web/internal/adapter/presenter"
	"github.com/phantom-eng/bytefood-web/internal/adapter/storage"
	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/core/service"
)

const (
	totalShoppers = 200
	queueSize     = 64
	workerCount   = 4
	paymentDelay  = 20 * time.Millisecond
)

// Every fifth shopper types a bad CVV and every seventh edits the cart while the
// payment is being verified. Everyone else must end up with exactly one delivered message.
func main() {
	ctx := context.Background()

	checkout := service.NewCheckoutService(storage.NewMemoryAdapter(), presenter.NewArchive(false), service.SessionConfig{
		StoreName:   domain.DefaultStoreName,
		Currency:    domain.DefaultCurrency,
		Destination: "+51964306693",
		CardDelay:   paymentDelay,
		QRDelay:     paymentDelay,
	}, queueSize)

	recorder := channel.NewRecorder()
	var workers sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for msg := range checkout.GetOutboundQueue() {
				recorder.Deliver(ctx, msg)
			}
		}()
	}

	var sent, rejectedCard, stale, failed atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalShoppers; i++ {
		wg.Add(1)
		go func(shopper int) {
			defer wg.Done()

			err := shop(ctx, checkout, shopper)
			switch {
			case err == nil:
				sent.Add(1)
			case domain.IsInvalidCard(err):
				rejectedCard.Add(1)
			case errors.Is(err, domain.ErrStalePayment):
				stale.Add(1)
			default:
				failed.Add(1)
				log.Printf("shopper %d: %v", shopper, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	checkout.Close()
	workers.Wait()
	delivered := len(recorder.Messages())

	expectRejected, expectStale := 0, 0
	for i := 0; i < totalShoppers; i++ {
		switch {
		case i%5 == 0:
			expectRejected++
		case i%7 == 0:
			expectStale++
		}
	}
	expectSent := totalShoppers - expectRejected - expectStale

	fmt.Println("========== LOAD RESULTS ==========")
	fmt.Printf("Shoppers:         %d\n", totalShoppers)
	fmt.Printf("Sent:             %d\n", sent.Load())
	fmt.Printf("Card rejected:    %d\n", rejectedCard.Load())
	fmt.Printf("Stale payments:   %d\n", stale.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Delivered:        %d\n", delivered)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==================================")

	if int(sent.Load()) == expectSent && delivered == expectSent && failed.Load() == 0 {
		fmt.Printf("PASS: %d orders sent and delivered exactly once\n", expectSent)
	} else {
		fmt.Printf("FAIL: expected %d sent/delivered, got %d/%d (%d failed)\n",
			expectSent, sent.Load(), delivered, failed.Load())
	}
	if int(rejectedCard.Load()) == expectRejected && int(stale.Load()) == expectStale {
		fmt.Println("PASS: rejections and stale results as expected")
	} else {
		fmt.Printf("FAIL: expected %d rejected/%d stale, got %d/%d\n",
			expectRejected, expectStale, rejectedCard.Load(), stale.Load())
	}
}

func shop(ctx context.Context, checkout *service.CheckoutService, shopper int) error {
	sess, err := checkout.Open(ctx, "")
	if err != nil {
		return err
	}

	for _, item := range []struct {
		name  string
		price string
	}{{"Burger", "12.50"}, {"Burger", "12.50"}, {"Fries", "4.00"}} {
		if err := sess.Add(ctx, item.name, decimal.RequireFromString(item.price)); err != nil {
			return err
		}
	}
	if err := sess.SetAddress(fmt.Sprintf("Av. Central %d", shopper)); err != nil {
		return err
	}

	if err := sess.BeginCheckout(); err != nil {
		return err
	}

	card := domain.Card{Number: "4111 1111 1111 1111", Expiry: "09/99", CVV: "123"}
	if shopper%5 == 0 {
		card.CVV = ""
	}
	pending, err := sess.SubmitCard(card)
	if err != nil {
		return err
	}
	if shopper%7 == 0 {
		if err := sess.Add(ctx, "Soda", decimal.RequireFromString("3.00")); err != nil {
			return err
		}
	}
	if outcome := <-pending; outcome.Err != nil {
		return outcome.Err
	}

	_, err = sess.Send(ctx)
	return err
}
