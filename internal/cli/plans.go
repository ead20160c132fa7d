// File path: internal/cli/plans.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/planbuilder/internal/planstore"
)

// NewListCommand prints the stored plans.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer orch.Close()
			plans, err := planstore.New(orch.Plans()).List(cmd.Context())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), plans)
			}
			return writePlanTable(cmd.OutOrStdout(), plans)
		},
	}
}

// NewShowCommand prints one plan as JSON.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan_id>",
		Short: "Print a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer orch.Close()
			found, err := planstore.New(orch.Plans()).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), found)
		},
	}
}

// NewDeleteCommand removes a stored plan.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan_id>",
		Short: "Delete a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer orch.Close()
			if err := planstore.New(orch.Plans()).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted plan %s\n", args[0])
			return nil
		},
	}
}
