// File path: internal/api/upload_handler.go
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/common/telemetry"
	"github.com/nicodishanthj/planbuilder/internal/ingest"
)

func (s *Server) handleUploadPlan(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx, finish := telemetry.StartSpan(r.Context(), "api.plans.upload")
	status := http.StatusOK
	defer func() {
		finish("status", status)
	}()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		status = statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, fmt.Errorf("failed to parse upload form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, fmt.Errorf("file is required: %w", err))
		return
	}
	defer file.Close()
	if !ingest.IsSpreadsheetName(header.Filename) {
		status = http.StatusBadRequest
		writeError(w, status, errors.New("File must be an Excel file (.xlsx or .xls)"))
		return
	}
	titles, ok := r.MultipartForm.Value["title"]
	if !ok || len(titles) == 0 {
		status = http.StatusBadRequest
		writeError(w, status, errors.New("title is required"))
		return
	}
	title := titles[0]

	data, err := io.ReadAll(file)
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, fmt.Errorf("read upload: %w", err))
		return
	}
	telemetry.RecordUpload(len(data))
	logger.Info("api: upload received", "file", header.Filename, "bytes", len(data))

	wb, closer, err := s.cfg.Opener(data)
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, fmt.Errorf("Error processing Excel file: %w", err))
		return
	}
	if closer != nil {
		defer closer.Close()
	}
	result, err := ingest.Process(ctx, wb)
	if err != nil {
		status = statusFor(err)
		writeError(w, status, fmt.Errorf("process workbook: %w", err))
		return
	}
	if len(result.Errors) > 0 {
		logger.Warn("api: upload had unreadable sheets", "file", header.Filename, "sheets", len(result.Errors))
	}

	created, err := s.plans.CreateFromSections(ctx, title, result.Sections)
	if err != nil {
		status = statusFor(err)
		writeError(w, status, err)
		return
	}
	telemetry.RecordPlanOperation("upload")
	logger.Info("api: plan uploaded", "plan_id", created.PlanID, "sections", len(result.Sections), "dur", telemetry.SpanDuration(ctx))
	writeJSON(w, http.StatusOK, uploadResponse{
		Message: "Plan uploaded successfully",
		PlanID:  created.PlanID,
		ID:      created.ID,
	})
}
