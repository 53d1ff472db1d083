package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phantom-eng/bytefood-web/internal/adapter/geo"
	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/core/service"
)

// order: pay for the current cart and print the receipt and the message link.
func orderCmd() *cobra.Command {
	var (
		address      string
		instructions string
		lat, lng     float64
		pay          string
		cardNumber   string
		cardExpiry   string
		cardCVV      string
	)

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Check out the cart and print the order link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			method, err := domain.ParsePaymentMethod(pay)
			if err != nil {
				return err
			}

			if address != "" {
				if err := session.SetAddress(address); err != nil {
					return err
				}
			}
			if instructions != "" {
				if err := session.SetInstructions(instructions); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
				pending, err := session.CaptureLocation(ctx, geo.Fixed{Location: domain.Location{Latitude: lat, Longitude: lng}})
				if err != nil {
					return err
				}
				if outcome := <-pending; outcome.Err != nil {
					return outcome.Err
				}
			}

			if err := session.BeginCheckout(); err != nil {
				return err
			}

			var pending <-chan service.PaymentOutcome
			if method == domain.PaymentMethodCard {
				pending, err = session.SubmitCard(domain.Card{Number: cardNumber, Expiry: cardExpiry, CVV: cardCVV})
			} else {
				if err := session.ChooseQR(method); err != nil {
					return err
				}
				pending, err = session.ConfirmQR()
			}
			if err != nil {
				return err
			}
			outcome := <-pending
			if outcome.Err != nil {
				return outcome.Err
			}
			if outcome.Receipt != nil {
				fmt.Println(outcome.Receipt.Text())
			}
			if outcome.PresentErr != nil {
				fmt.Println(domain.Notice(outcome.PresentErr))
			} else {
				fmt.Println("Boleta:", receipts.Path(session.ID()))
			}

			msg, err := session.Send(ctx)
			if errors.Is(err, domain.ErrMissingDestination) {
				return fmt.Errorf("%w (use --address or --lat/--lng)", err)
			}
			if err != nil {
				return err
			}
			fmt.Println(msg.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "delivery address")
	cmd.Flags().StringVar(&instructions, "instructions", "", "delivery instructions")
	cmd.Flags().Float64Var(&lat, "lat", 0, "delivery latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "delivery longitude")
	cmd.Flags().StringVar(&pay, "pay", "yape", "payment method: yape, plin, qr or card")
	cmd.Flags().StringVar(&cardNumber, "card-number", "", "card number")
	cmd.Flags().StringVar(&cardExpiry, "card-expiry", "", "card expiry (MM/YY)")
	cmd.Flags().StringVar(&cardCVV, "card-cvv", "", "card CVV")
	return cmd
}
