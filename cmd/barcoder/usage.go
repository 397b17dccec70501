package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"barcoder/internal/export"
	"barcoder/pkg/domain"
)

func newUsageCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Print the printed label counts per printer, project and user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withDirectory(cmd, func(ctx context.Context, dir domain.Directory) error {
				counts, err := dir.LabelCounts(ctx)
				if err != nil {
					return err
				}
				if strings.EqualFold(format, "json") {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if counts == nil {
						counts = []domain.LabelCount{}
					}
					return enc.Encode(counts)
				}
				return export.WriteUsageCSV(cmd.OutOrStdout(), counts)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv or json")
	return cmd
}
