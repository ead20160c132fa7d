// File path: internal/cli/output.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nicodishanthj/planbuilder/internal/plan"
)

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writePlanTable(w io.Writer, plans []*plan.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAN_ID\tTITLE\tCREATED\tUPDATED")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.PlanID, p.Title, plan.FormatTimestamp(p.CreatedAt), plan.FormatTimestamp(p.UpdatedAt))
	}
	return tw.Flush()
}
