package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"barcoder/pkg/domain"
)

func newProjectsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage project entries in the directory",
	}
	add := &cobra.Command{
		Use:   "add IDENTIFIER TITLE",
		Short: "Register /SPACE/PROJECT with its short title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withDirectory(cmd, func(ctx context.Context, dir domain.Directory) error {
				id, err := dir.AddProject(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "project %d: %s\n", id, args[0])
				return nil
			})
		},
	}
	cmd.AddCommand(add)
	return cmd
}
