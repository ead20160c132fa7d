// File path: internal/cli/ingest.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/planbuilder/internal/ingest"
)

// NewIngestCommand parses a workbook and prints the resulting sections
// without touching the store.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <workbook>",
		Short: "Print the plan sections extracted from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readWorkbook(cmd, args[0])
			if err != nil {
				return err
			}
			for _, sheetErr := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", sheetErr)
			}
			if rootOpts.Format == "text" {
				for _, mapping := range ingest.SheetTable() {
					section, ok := result.Sections[mapping.Section]
					switch {
					case !ok:
						continue
					case section["error"] != nil:
						fmt.Fprintf(cmd.OutOrStdout(), "%-26s error: %v\n", mapping.Section, section["error"])
					default:
						rows, _ := section["rows"].([]any)
						cells, _ := section["non_empty_cells"].(map[string]any)
						fmt.Fprintf(cmd.OutOrStdout(), "%-26s %d rows, %d cells\n", mapping.Section, len(rows), len(cells))
					}
				}
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), result.Sections)
		},
	}
}

func readWorkbook(cmd *cobra.Command, path string) (ingest.Result, error) {
	if !ingest.IsSpreadsheetName(path) {
		return ingest.Result{}, fmt.Errorf("%s: file must be an Excel file (.xlsx or .xls)", path)
	}
	wb, closer, err := ingest.OpenFile(path)
	if err != nil {
		return ingest.Result{}, err
	}
	defer closer.Close()
	return ingest.Process(cmd.Context(), wb)
}
