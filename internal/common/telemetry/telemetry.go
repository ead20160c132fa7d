// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/planbuilder/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	planOpsTotal     *expvar.Map
	storeOpsTotal    *expvar.Map
	storeErrorsTotal *expvar.Map
	storeLatencyMS   *expvar.Map
	spansTotal       *expvar.Map
	spanLatencyMS    *expvar.Map

	ingestSheetsTotal      *expvar.Int
	ingestSheetErrorsTotal *expvar.Int
	uploadBytesTotal       *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		planOpsTotal = expvar.NewMap("plans_operations_total")
		storeOpsTotal = expvar.NewMap("plans_store_operations_total")
		storeErrorsTotal = expvar.NewMap("plans_store_errors_total")
		storeLatencyMS = expvar.NewMap("plans_store_latency_ms")
		spansTotal = expvar.NewMap("plans_spans_total")
		spanLatencyMS = expvar.NewMap("plans_span_latency_ms")

		ingestSheetsTotal = expvar.NewInt("plans_ingest_sheets_total")
		ingestSheetErrorsTotal = expvar.NewInt("plans_ingest_sheet_errors_total")
		uploadBytesTotal = expvar.NewInt("plans_upload_bytes_total")
	})
}

// StartSpan logs the start of a named operation at debug level and returns a
// function that logs its end with the elapsed duration and counts the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...any)) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...any) {
		duration := time.Since(sp.start)
		key := normalizeKey(name, "unknown")
		spansTotal.Add(key, 1)
		spanLatencyMS.Add(key, duration.Milliseconds())
		logger.Debug("trace: end", append([]any{"span", name, "dur", duration}, attrs...)...)
	}
}

// SpanDuration reports how long the span carried by ctx has been running.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

// RecordPlanOperation counts a completed plan operation such as "create",
// "upload", "update" or "delete".
func RecordPlanOperation(op string) {
	ensureInit()
	planOpsTotal.Add(normalizeKey(op, "unknown"), 1)
}

// RecordStoreOperation counts a collection call and its latency.
func RecordStoreOperation(op string, duration time.Duration, err error) {
	ensureInit()
	key := normalizeKey(op, "unknown")
	storeOpsTotal.Add(key, 1)
	if err != nil {
		storeErrorsTotal.Add(key, 1)
	}
	if duration > 0 {
		storeLatencyMS.Add(key, duration.Milliseconds())
	}
}

// RecordIngestSheet counts a processed workbook sheet.
func RecordIngestSheet(ok bool) {
	ensureInit()
	ingestSheetsTotal.Add(1)
	if !ok {
		ingestSheetErrorsTotal.Add(1)
	}
}

// RecordUpload counts the size of an accepted upload.
func RecordUpload(bytes int) {
	ensureInit()
	if bytes <= 0 {
		return
	}
	uploadBytesTotal.Add(int64(bytes))
}

// Snapshot returns the current counters, mainly for tests and diagnostics.
func Snapshot() map[string]int64 {
	ensureInit()
	out := map[string]int64{
		"ingest_sheets":       ingestSheetsTotal.Value(),
		"ingest_sheet_errors": ingestSheetErrorsTotal.Value(),
		"upload_bytes":        uploadBytesTotal.Value(),
	}
	planOpsTotal.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out["plan_"+kv.Key] = v.Value()
		}
	})
	storeOpsTotal.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out["store_"+kv.Key] = v.Value()
		}
	})
	spansTotal.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out["span_"+kv.Key] = v.Value()
		}
	})
	return out
}

func normalizeKey(value, fallback string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return fallback
	}
	return key
}
