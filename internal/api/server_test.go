// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nicodishanthj/planbuilder/internal/common/telemetry"
	"github.com/nicodishanthj/planbuilder/internal/data/orchestrator"
	"github.com/nicodishanthj/planbuilder/internal/ingest"
	"github.com/nicodishanthj/planbuilder/internal/memory"
	"github.com/nicodishanthj/planbuilder/internal/plan"
)

type planResponse struct {
	ID              string         `json:"id"`
	PlanID          string         `json:"plan_id"`
	Title           string         `json:"title"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	TitleSheet      map[string]any `json:"title_sheet"`
	RiskManagement  map[string]any `json:"risk_management"`
	SkillMatrix     map[string]any `json:"skill_matrix"`
	ResourcePlan    map[string]any `json:"resource_plan"`
	SupplierManager map[string]any `json:"supplier_management"`
}

func newTestOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(t.TempDir(), "plans")
	if err != nil {
		t.Fatalf("memory.NewStore: %v", err)
	}
	orch, err := orchestrator.New(context.Background(), orchestrator.Config{Driver: orchestrator.DriverMemory}, orchestrator.WithCollection(store))
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })
	return orch, store
}

func newTestServer(t *testing.T, cfg *Config) (*Server, *memory.Store) {
	t.Helper()
	orch, store := newTestOrchestrator(t)
	srv, err := NewServer(context.Background(), orch, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func decodePlan(t *testing.T, rr *httptest.ResponseRecorder) planResponse {
	t.Helper()
	var resp planResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	return resp
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload["detail"]
}

func workbookBytes(t *testing.T, sheets map[string][][]string, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range sheets[name] {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name: %v", err)
				}
				if err := f.SetCellValue(name, cell, value); err != nil {
					t.Fatalf("set cell: %v", err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, contents []byte, title *string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if title != nil {
		if err := writer.WriteField("title", *title); err != nil {
			t.Fatalf("write title field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(contents); err != nil {
			t.Fatalf("write file contents: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/plans/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func strPtr(value string) *string {
	return &value
}

func TestRootMessage(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodGet, "/api/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["message"] != "Project Plan Management API" {
		t.Fatalf("unexpected message %q", resp["message"])
	}
}

func TestPlanLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodPost, "/api/plans", `{"title":"Apollo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status: %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodePlan(t, rr)
	if created.Title != "Apollo" || created.ID == "" {
		t.Fatalf("unexpected created plan: %#v", created)
	}
	if !plan.ValidPlanID(created.PlanID) {
		t.Fatalf("plan_id %q is not 8 uppercase characters", created.PlanID)
	}
	if created.RiskManagement == nil || len(created.RiskManagement) != 0 {
		t.Fatalf("sections must default to empty objects, got %#v", created.RiskManagement)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/plans/"+created.PlanID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status: %d", rr.Code)
	}
	fetched := decodePlan(t, rr)
	if fetched.ID != created.ID || !fetched.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("fetched plan differs: %#v", fetched)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/plans/"+created.PlanID, `{"resource_plan":{"lead":"Ada"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status: %d body=%s", rr.Code, rr.Body.String())
	}
	updated := decodePlan(t, rr)
	if updated.Title != "Apollo" {
		t.Fatalf("title should be untouched, got %q", updated.Title)
	}
	if updated.ResourcePlan["lead"] != "Ada" {
		t.Fatalf("resource plan not updated: %#v", updated.ResourcePlan)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at %v not after %v", updated.UpdatedAt, created.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed")
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/plans/"+created.PlanID, `{"title":"Apollo","resource_plan":{"lead":"Ada"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("repeat update should succeed, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/plans", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status: %d", rr.Code)
	}
	var listed []planResponse
	if err := json.NewDecoder(rr.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].PlanID != created.PlanID {
		t.Fatalf("unexpected list: %#v", listed)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/plans/"+created.PlanID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status: %d", rr.Code)
	}
	var deleted map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&deleted); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if deleted["message"] != "Plan deleted successfully" {
		t.Fatalf("unexpected delete message %q", deleted["message"])
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/plans/"+created.PlanID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodGet, "/api/plans", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestMissingPlansReturn404(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	cases := []struct {
		method string
		body   string
	}{
		{method: http.MethodGet},
		{method: http.MethodPut, body: `{"title":"x"}`},
		{method: http.MethodDelete},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			rr := doJSON(t, srv, tc.method, "/api/plans/NOPE0000", tc.body)
			if rr.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rr.Code)
			}
			if detail := decodeDetail(t, rr); detail != "Plan not found" {
				t.Fatalf("unexpected detail %q", detail)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "malformed", body: `{"title":`, code: http.StatusBadRequest},
		{name: "missing title", body: `{}`, code: http.StatusBadRequest},
		{name: "empty title", body: `{"title":""}`, code: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/plans", tc.body)
			if rr.Code != tc.code {
				t.Fatalf("expected %d, got %d body=%s", tc.code, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUpdateRejectsInvalidBodies(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodPost, "/api/plans", `{"title":"Apollo"}`)
	created := decodePlan(t, rr)

	for _, body := range []string{`{"title":5}`, `{"risk_management":"high"}`, `[1,2]`, `{`} {
		rr := doJSON(t, srv, http.MethodPut, "/api/plans/"+created.PlanID, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestUploadCreatesPlanFromWorkbook(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	data := workbookBytes(t, map[string][][]string{
		"Title Sheet":     {{"Project", " Apollo "}, {"", "draft"}},
		"Risk Management": {{"Risk", "Owner"}, {"Late supplier"}},
		"Scratch":         {{"ignored"}},
	}, []string{"Title Sheet", "Risk Management", "Scratch"})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "plan.xlsx", data, strPtr("Uploaded plan")))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status: %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if resp["message"] != "Plan uploaded successfully" || resp["plan_id"] == "" || resp["id"] == "" {
		t.Fatalf("unexpected upload response: %#v", resp)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/plans/"+resp["plan_id"], "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status: %d", rr.Code)
	}
	got := decodePlan(t, rr)
	if got.Title != "Uploaded plan" || got.ID != resp["id"] {
		t.Fatalf("unexpected plan: %#v", got)
	}
	cells, ok := got.TitleSheet["non_empty_cells"].(map[string]any)
	if !ok {
		t.Fatalf("title sheet missing non_empty_cells: %#v", got.TitleSheet)
	}
	if cells["0,1"] != "Apollo" || cells["1,1"] != "draft" {
		t.Fatalf("unexpected cells: %#v", cells)
	}
	if _, blank := cells["1,0"]; blank {
		t.Fatalf("blank cell should not be listed")
	}
	rows, ok := got.RiskManagement["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("unexpected risk rows: %#v", got.RiskManagement["rows"])
	}
	if second, _ := rows[1].([]any); len(second) != 2 || second[1] != "" {
		t.Fatalf("short rows should be padded: %#v", rows[1])
	}
	if len(got.SkillMatrix) != 0 {
		t.Fatalf("absent sheet should leave section empty: %#v", got.SkillMatrix)
	}
}

func TestUploadValidation(t *testing.T) {
	calls := 0
	opener := func(data []byte) (ingest.Workbook, io.Closer, error) {
		calls++
		return ingest.ExcelOpener(data)
	}
	srv, store := newTestServer(t, &Config{Opener: opener})
	valid := workbookBytes(t, map[string][][]string{"Title Sheet": {{"x"}}}, []string{"Title Sheet"})

	cases := []struct {
		name     string
		filename string
		contents []byte
		title    *string
		opened   bool
	}{
		{name: "wrong extension", filename: "plan.csv", contents: valid, title: strPtr("t")},
		{name: "missing file", title: strPtr("t")},
		{name: "missing title", filename: "plan.xlsx", contents: valid},
		{name: "not a workbook", filename: "plan.xlsx", contents: []byte("title,value\n"), title: strPtr("t"), opened: true},
		{name: "truncated legacy binary", filename: "plan.XLS", contents: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, title: strPtr("t"), opened: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := calls
			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, uploadRequest(t, tc.filename, tc.contents, tc.title))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
			}
			if decodeDetail(t, rr) == "" {
				t.Fatalf("expected detail message")
			}
			if opened := calls > before; opened != tc.opened {
				t.Fatalf("opener called = %v, want %v", opened, tc.opened)
			}
		})
	}

	docs, err := store.Find(context.Background(), 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("rejected uploads must not persist plans, found %d", len(docs))
	}
}

type brokenSheetWorkbook struct{}

func (brokenSheetWorkbook) SheetNames() []string {
	return []string{"Skill Matrix", "Risk Management"}
}

func (brokenSheetWorkbook) Rows(sheet string) ([][]string, error) {
	if sheet == "Skill Matrix" {
		return nil, errors.New("unsupported cell type")
	}
	return [][]string{{"Risk"}}, nil
}

func TestUploadKeepsGoingPastBrokenSheet(t *testing.T) {
	opener := func(data []byte) (ingest.Workbook, io.Closer, error) {
		return brokenSheetWorkbook{}, nil, nil
	}
	srv, _ := newTestServer(t, &Config{Opener: opener})

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "plan.xlsx", []byte("ignored"), strPtr("partial")))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status: %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	got := decodePlan(t, doJSON(t, srv, http.MethodGet, "/api/plans/"+resp["plan_id"], ""))
	if got.SkillMatrix["error"] != "unsupported cell type" {
		t.Fatalf("expected error section, got %#v", got.SkillMatrix)
	}
	if _, ok := got.RiskManagement["rows"]; !ok {
		t.Fatalf("healthy sheet missing: %#v", got.RiskManagement)
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, &Config{MaxUploadBytes: 512})
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "plan.xlsx", bytes.Repeat([]byte("x"), 4096), strPtr("big")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUploadLegacyWorkbook(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "ingest", "testdata", "legacy_plan.xls"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	srv, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "legacy.XLS", data, strPtr("Legacy plan")))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status: %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	got := decodePlan(t, doJSON(t, srv, http.MethodGet, "/api/plans/"+resp["plan_id"], ""))
	if got.Title != "Legacy plan" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	cells, ok := got.TitleSheet["non_empty_cells"].(map[string]any)
	if !ok {
		t.Fatalf("title sheet missing non_empty_cells: %#v", got.TitleSheet)
	}
	if cells["0,1"] != "Apollo" || cells["1,1"] != "1250" || cells["2,2"] != "PMO" {
		t.Fatalf("unexpected cells: %#v", cells)
	}
	rows, ok := got.RiskManagement["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("unexpected risk rows: %#v", got.RiskManagement["rows"])
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doJSON(t, srv, http.MethodPost, "/api/plans", `{"title":"logged"}`)

	rr := doJSON(t, srv, http.MethodGet, "/api/logs?level=info", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var resp struct {
		Entries []struct {
			Level     string `json:"level"`
			Message   string `json:"message"`
			Component string `json:"component"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	found := false
	for _, entry := range resp.Entries {
		if entry.Level != "info" {
			t.Fatalf("level filter ignored: %#v", entry)
		}
		if entry.Message == "api: plan created" && entry.Component == "api" {
			found = true
		}
	}
	if !found {
		t.Fatalf("plan creation log not captured")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/logs?limit=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}
}

func TestDebugVarsExposeCounters(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doJSON(t, srv, http.MethodPost, "/api/plans", `{"title":"counted"}`)
	rr := doJSON(t, srv, http.MethodGet, "/debug/vars", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "plans_operations_total") {
		t.Fatalf("expvar output missing plan counters")
	}
}

func TestUploadAndUpdateAreTraced(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	before := telemetry.Snapshot()

	data := workbookBytes(t, map[string][][]string{"Title Sheet": {{"x"}}}, []string{"Title Sheet"})
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "plan.xlsx", data, strPtr("traced")))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status: %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	rr = doJSON(t, srv, http.MethodPut, "/api/plans/"+resp["plan_id"], `{"title":"renamed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status: %d", rr.Code)
	}

	after := telemetry.Snapshot()
	for _, key := range []string{"span_api.plans.upload", "span_ingest.process", "span_api.plans.update", "plan_upload"} {
		if after[key] != before[key]+1 {
			t.Fatalf("%s: got %d, want %d", key, after[key], before[key]+1)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &Config{CORSOrigins: []string{"http://localhost:3000"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/plans", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("credentials not allowed")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example,")
	t.Setenv("PLANS_MAX_UPLOAD_BYTES", "1024")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins %#v", cfg.CORSOrigins)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected max upload %d", cfg.MaxUploadBytes)
	}
	if cfg.Opener == nil {
		t.Fatalf("default opener missing")
	}

	t.Setenv("PLANS_MAX_UPLOAD_BYTES", "lots")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}
