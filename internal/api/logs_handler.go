// File path: internal/api/logs_handler.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nicodishanthj/planbuilder/internal/common"
)

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", value))
			return
		}
		limit = parsed
	}
	entries := common.RecentLogEntries(limit, r.URL.Query().Get("level"))
	if entries == nil {
		entries = []common.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: entries})
}
