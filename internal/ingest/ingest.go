// File path: internal/ingest/ingest.go
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/common/telemetry"
	"github.com/nicodishanthj/planbuilder/internal/plan"
)

// SheetMapping pairs a workbook sheet name with the plan section it fills.
type SheetMapping struct {
	Sheet   string
	Section string
}

// Sheet names are matched exactly. "Supplie Agreement Management" is the name
// used by existing workbooks and must not be corrected.
var sheetTable = []SheetMapping{
	{Sheet: "Title Sheet", Section: plan.TitleSheet},
	{Sheet: "Revision History", Section: plan.RevisionHistory},
	{Sheet: "Definitions and References", Section: plan.DefinitionsReferences},
	{Sheet: "Project Introduction", Section: plan.ProjectIntroduction},
	{Sheet: "Resource Plan and Estimation", Section: plan.ResourcePlan},
	{Sheet: "PMC and Project Objectives", Section: plan.PMCObjectives},
	{Sheet: "Quality Management", Section: plan.QualityManagement},
	{Sheet: "DAR, Tailoring and Release Plan", Section: plan.DARTailoring},
	{Sheet: "Risk Management", Section: plan.RiskManagement},
	{Sheet: "Opportunity Management", Section: plan.OpportunityManagement},
	{Sheet: "Configuration Management", Section: plan.ConfigurationManagement},
	{Sheet: "List of Deliverables", Section: plan.Deliverables},
	{Sheet: "Skill Matrix", Section: plan.SkillMatrix},
	{Sheet: "Supplie Agreement Management", Section: plan.SupplierManagement},
}

// SheetTable returns the recognized sheet names and their sections.
func SheetTable() []SheetMapping {
	return append([]SheetMapping(nil), sheetTable...)
}

// SheetError records a sheet that could not be converted.
type SheetError struct {
	Sheet   string
	Section string
	Err     error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.Sheet, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// Result holds the sections built from a workbook. Sections only contains
// keys whose sheet was present; failed sheets map to {"error": message}.
type Result struct {
	Sections map[string]plan.Section
	Errors   []*SheetError
}

// Process converts every recognized sheet of wb into a section payload.
// A sheet that fails to read is captured as a soft error and the remaining
// sheets are still processed.
func Process(ctx context.Context, wb Workbook) (Result, error) {
	logger := common.Logger()
	ctx, finish := telemetry.StartSpan(ctx, "ingest.process")
	result := Result{Sections: make(map[string]plan.Section)}
	defer func() {
		finish("sections", len(result.Sections), "errors", len(result.Errors))
	}()
	present := make(map[string]struct{})
	for _, name := range wb.SheetNames() {
		present[name] = struct{}{}
	}
	for _, mapping := range sheetTable {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, ok := present[mapping.Sheet]; !ok {
			continue
		}
		section, err := readSheet(wb, mapping.Sheet)
		if err != nil {
			sheetErr := &SheetError{Sheet: mapping.Sheet, Section: mapping.Section, Err: err}
			logger.Error("ingest: sheet failed", "sheet", mapping.Sheet, "section", mapping.Section, "error", err)
			telemetry.RecordIngestSheet(false)
			result.Errors = append(result.Errors, sheetErr)
			result.Sections[mapping.Section] = plan.Section{"error": err.Error()}
			continue
		}
		telemetry.RecordIngestSheet(true)
		result.Sections[mapping.Section] = section
	}
	logger.Debug("ingest: workbook processed", "sections", len(result.Sections), "errors", len(result.Errors))
	return result, nil
}

func readSheet(wb Workbook, sheet string) (section plan.Section, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			section = nil
			err = fmt.Errorf("read sheet: %v", recovered)
		}
	}()
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, err
	}
	return BuildSection(rows), nil
}

// BuildSection converts a headerless grid into the stored section shape:
// "rows" keeps every cell (blank cells as ""), "non_empty_cells" maps
// "<row>,<col>" to the trimmed text of each non-blank cell.
func BuildSection(grid [][]string) plan.Section {
	grid = trimTrailingBlankRows(grid)
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	rows := make([]any, 0, len(grid))
	cells := make(map[string]any)
	for i, row := range grid {
		values := make([]any, width)
		for j := 0; j < width; j++ {
			value := ""
			if j < len(row) {
				value = strings.TrimSpace(row[j])
			}
			if value != "" {
				cells[fmt.Sprintf("%d,%d", i, j)] = value
			}
			values[j] = value
		}
		rows = append(rows, values)
	}
	return plan.Section{
		"rows":            rows,
		"non_empty_cells": cells,
	}
}

func trimTrailingBlankRows(grid [][]string) [][]string {
	end := len(grid)
	for end > 0 && rowIsBlank(grid[end-1]) {
		end--
	}
	return grid[:end]
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
