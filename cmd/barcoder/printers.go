package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"barcoder/pkg/domain"
)

func newPrintersCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printers",
		Short: "Manage label printers in the directory",
	}
	cmd.AddCommand(newPrinterAddCmd(root), newPrinterListCmd(root))
	return cmd
}

func newPrinterAddCmd(root *rootOptions) *cobra.Command {
	var (
		printer     domain.Printer
		printerType string
		projects    []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a printer and associate it with projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printer.Name == "" || printer.Location == "" || printer.Host == "" {
				return errors.New("--name, --location and --host are required")
			}
			printer.Type = domain.ParsePrinterType(printerType)
			return root.withDirectory(cmd, func(ctx context.Context, dir domain.Directory) error {
				id, err := dir.AddPrinter(ctx, printer)
				if err != nil {
					return err
				}
				for _, p := range projects {
					projectID, err := dir.ProjectID(ctx, p)
					if err != nil {
						return fmt.Errorf("project %s: %w", p, err)
					}
					if err := dir.AssociatePrinter(ctx, id, projectID); err != nil {
						return fmt.Errorf("associate %s: %w", p, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "printer %d: %s at %s\n", id, printer.Name, printer.Location)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&printer.Name, "name", "", "printer queue name")
	f.StringVar(&printer.Location, "location", "", "printer location")
	f.StringVar(&printer.Host, "host", "", "print server host")
	f.StringVar(&printerType, "type", string(domain.PrinterLabel), "printer type")
	f.BoolVar(&printer.AdminOnly, "admin-only", false, "only offer the printer to admins")
	f.StringVar(&printer.UserGroup, "group", "", "user group allowed to print")
	f.StringSliceVar(&projects, "project", nil, "project identifier (/SPACE/PROJECT) to associate, repeatable")
	return cmd
}

func newPrinterListCmd(root *rootOptions) *cobra.Command {
	var groups []string
	cmd := &cobra.Command{
		Use:   "list PROJECT",
		Short: "List the printers offered for a project code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withDirectory(cmd, func(ctx context.Context, dir domain.Directory) error {
				printers, err := dir.PrintersForProject(ctx, args[0], groups)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LOCATION\tNAME\tHOST\tTYPE")
				for _, p := range printers {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Location, p.Name, p.Host, p.Type)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringSliceVar(&groups, "group", nil, "user groups of the caller")
	return cmd
}
