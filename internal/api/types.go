// File path: internal/api/types.go
package api

import "github.com/nicodishanthj/planbuilder/internal/common"

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type createPlanRequest struct {
	Title *string `json:"title"`
}

type uploadResponse struct {
	Message string `json:"message"`
	PlanID  string `json:"plan_id"`
	ID      string `json:"id"`
}

type logsResponse struct {
	Entries []common.LogEntry `json:"entries"`
}
