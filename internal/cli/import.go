// File path: internal/cli/import.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/planbuilder/internal/planstore"
)

// NewImportCommand creates a stored plan from a workbook.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "import <workbook>",
		Short: "Create a plan from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readWorkbook(cmd, args[0])
			if err != nil {
				return err
			}
			for _, sheetErr := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", sheetErr)
			}
			orch, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer orch.Close()
			created, err := planstore.New(orch.Plans()).CreateFromSections(cmd.Context(), title, result.Sections)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"plan_id": created.PlanID, "id": created.ID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created plan %s (%d sections from workbook)\n", created.PlanID, len(result.Sections))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "plan title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
