package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the store is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hours := domain.DefaultHours()
			now := time.Now().In(storeLocation())
			fmt.Printf("%s (%02d:00 - %02d:00)\n", hours.StatusLabel(now), hours.Open, hours.Close)
			return nil
		},
	}
}
