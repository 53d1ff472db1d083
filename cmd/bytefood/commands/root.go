package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phantom-eng/bytefood-web/internal/adapter/presenter"
	"github.com/phantom-eng/bytefood-web/internal/adapter/storage"
	"github.com/phantom-eng/bytefood-web/internal/config"
	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/core/service"
)

var (
	home         string
	logLevel     string
	enforceHours bool
	timeZone     string

	checkout *service.CheckoutService
	receipts *presenter.Directory
	session  *service.Session
)

func Execute() error {
	root := &cobra.Command{
		Use:           "bytefood",
		Short:         "Build a ByteFood order from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".bytefood")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			logger, err := config.NewLogger(config.LoggerConfig{Level: logLevel, Env: "local"})
			if err != nil {
				return err
			}

			receipts = presenter.NewDirectory(filepath.Join(home, "receipts"))
			cfg := service.SessionConfig{
				StoreName:   domain.DefaultStoreName,
				Currency:    domain.DefaultCurrency,
				Destination: config.DefaultWhatsApp,
				TimeZone:    storeLocation(),
			}
			if enforceHours {
				hours := domain.DefaultHours()
				cfg.Hours = &hours
			}
			checkout = service.NewCheckoutService(storage.NewFileAdapter(filepath.Join(home, "carts")), receipts, cfg, 1,
				service.WithLogger(logger))

			id, err := sessionID()
			if err != nil {
				return err
			}
			session, err = checkout.Open(cmd.Context(), id)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.bytefood)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	root.PersistentFlags().BoolVar(&enforceHours, "enforce-hours", false, "reject adds while the store is closed")
	root.PersistentFlags().StringVar(&timeZone, "tz", "America/Lima", "store time zone")

	root.AddCommand(cartCmd(), statusCmd(), orderCmd())

	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
	}
	return err
}

// sessionID keeps one cart per home dir across invocations.
func sessionID() (string, error) {
	path := filepath.Join(home, "session")
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}

func storeLocation() *time.Location {
	return config.Store{TimeZone: timeZone}.Location()
}

func describe(err error) string {
	if service.IsNotice(err) {
		return domain.Notice(err)
	}
	return err.Error()
}

func printOrder(order domain.Order) {
	if order.IsEmpty() {
		fmt.Println("Tu carrito está vacío")
		return
	}
	for _, line := range order.Lines {
		fmt.Printf("%-24s x%-3d %s\n", line.Name, line.Quantity, domain.FormatMoney(domain.DefaultCurrency, line.Subtotal))
	}
	fmt.Printf("%-29s %s\n", "Total", domain.FormatMoney(domain.DefaultCurrency, order.Total))
}
