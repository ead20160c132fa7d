// File path: internal/cli/cli_test.go
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nicodishanthj/planbuilder/internal/planstore"
)

func clearStoreEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PLANS_CONFIG_FILE", "PLANS_STORE_DRIVER", "PLANS_COLLECTION", "PLANS_MEMORY_PATH",
		"SQLITE_CONFIG_FILE", "SQLITE_PATH", "MONGO_CONFIG_FILE", "MONGO_URL", "DB_NAME",
	} {
		t.Setenv(key, "")
	}
}

func writeWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Title Sheet"))
	require.NoError(t, f.SetCellValue("Title Sheet", "A1", "Project"))
	require.NoError(t, f.SetCellValue("Title Sheet", "B1", "Apollo"))
	_, err := f.NewSheet("Skill Matrix")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Skill Matrix", "A1", "Go"))
	path := filepath.Join(dir, "plan.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "planctl", cmd.Use)

	for _, name := range []string{"ingest", "import", "list", "show", "delete"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, flag := range []string{"driver", "sqlite", "memory", "collection", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := run(t, "--format", "yaml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIngestPrintsSections(t *testing.T) {
	path := writeWorkbook(t, t.TempDir())

	out, _, err := run(t, "--format", "json", "ingest", path)
	require.NoError(t, err)
	var sections map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sections))
	assert.Len(t, sections, 2)
	assert.Equal(t, map[string]any{"0,0": "Project", "0,1": "Apollo"}, sections["title_sheet"]["non_empty_cells"])

	out, _, err = run(t, "ingest", path)
	require.NoError(t, err)
	assert.Contains(t, out, "title_sheet")
	assert.Contains(t, out, "1 rows, 2 cells")
	assert.Contains(t, out, "skill_matrix")
}

func TestIngestRejectsNonSpreadsheets(t *testing.T) {
	_, _, err := run(t, "ingest", filepath.Join(t.TempDir(), "plan.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".xlsx")
}

func TestImportListShowDelete(t *testing.T) {
	clearStoreEnv(t)
	dir := t.TempDir()
	path := writeWorkbook(t, dir)
	storeDir := filepath.Join(dir, "store")
	base := []string{"--driver", "memory", "--memory", storeDir}

	_, _, err := run(t, append(base, "import", path)...)
	require.Error(t, err, "title is required")

	out, _, err := run(t, append(base, "--format", "json", "import", path, "--title", "From CLI")...)
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	planID := created["plan_id"]
	require.Len(t, planID, 8)

	out, _, err = run(t, append(base, "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "PLAN_ID")
	assert.Contains(t, out, planID)
	assert.Contains(t, out, "From CLI")

	out, _, err = run(t, append(base, "show", planID)...)
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "From CLI", shown["title"])
	assert.Equal(t, map[string]any{}, shown["risk_management"])

	out, _, err = run(t, append(base, "delete", planID)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deleted plan "+planID))

	_, _, err = run(t, append(base, "show", planID)...)
	assert.ErrorIs(t, err, planstore.ErrNotFound)
}
