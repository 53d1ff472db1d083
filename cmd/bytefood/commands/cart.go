package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

func cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the cart",
	}
	cmd.AddCommand(cartAddCmd(), cartRemoveCmd(), cartShowCmd(), cartClearCmd())
	return cmd
}

// cart add <name> <price>: add one unit.
func cartAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <price>",
		Short: "Add one unit of a menu item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := domain.ParseMoney(args[1])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[1], err)
			}
			if err := session.Add(cmd.Context(), args[0], price); err != nil {
				return err
			}
			fmt.Printf("✅ %s añadido al carrito\n", args[0])
			return nil
		},
	}
}

func cartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove one unit of a menu item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.RemoveOne(cmd.Context(), args[0]); err != nil {
				return err
			}
			printOrder(session.View().Order)
			return nil
		},
	}
}

func cartShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the aggregated cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printOrder(session.View().Order)
			return nil
		},
	}
}

func cartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Carrito vacío")
			return nil
		},
	}
}
