package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"barcoder/pkg/domain"
)

func newCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Sample code utilities",
	}
	var count int
	next := &cobra.Command{
		Use:   "next CODE",
		Short: "Print the codes following CODE in registration order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			for i := 0; i < count; i++ {
				var err error
				if code, err = domain.IncrementSampleCode(code); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
	next.Flags().IntVarP(&count, "count", "n", 1, "number of codes to print")

	check := &cobra.Command{
		Use:   "check CODE...",
		Short: "Report whether each CODE is a valid sample barcode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, code := range args {
				state := "valid"
				if !domain.IsBarcode(code) {
					state = "invalid"
					invalid++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, state)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d codes are invalid", invalid, len(args))
			}
			return nil
		},
	}

	span := &cobra.Command{
		Use:   "range CODE...",
		Short: "Print the numeric span of the given codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), domain.BarcodeRange(args))
			return nil
		},
	}

	cmd.AddCommand(next, check, span)
	return cmd
}
