package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/akolanti/ComplianceGPT/internal/adapter"
	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

var logUtils = logger_i.NewLogger("handlers")

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already out
		logUtils.Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, message string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, message, httpCode))
}

// writeDomainError maps err and writes it. Rate limited answers carry a
// Retry-After header.
func writeDomainError(w http.ResponseWriter, ctx context.Context, id string, err error) {
	traceId := traceIdFrom(ctx)
	jobErr := adapter.ToJobError(err, traceId)
	writeJobError(w, id, jobErr, traceId)
}

func writeJobError(w http.ResponseWriter, id string, jobErr jobModel.JobError, traceId string) {
	if jobErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(jobErr.RetryAfter))
	}
	writeJsonResponse(w, jobErr.Code, adapter.ErrorResponse(id, jobErr, traceId))
}

func validateContext(ctx context.Context) bool {
	return ctx.Err() == nil
}

func traceIdFrom(ctx context.Context) string {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return traceId
}
