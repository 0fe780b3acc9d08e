package api

import (
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Type      string            `json:"type" example:"Query"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code       int    `json:"code" example:"503"`
	Message    string `json:"message" example:"The answer service is busy, please try again shortly"`
	Retry      bool   `json:"can_retry" example:"true"`
	RetryAfter int    `json:"retry_after,omitempty" example:"30"`
	TraceId    string `json:"trace_id,omitempty"`
}

type Result struct {
	Status         string          `json:"status"`
	AnswerResponse *AnswerResponse `json:"answer,omitempty"`
	IngestResponse *IngestResponse `json:"ingest,omitempty"`
}

type AnswerResponse struct {
	Question  string                `json:"question"`
	Answer    string                `json:"answer"`
	Citations []queryModel.Citation `json:"citations"`
	NoResults bool                  `json:"no_results"`
	Cached    bool                  `json:"cached"`
	LatencyMs int64                 `json:"latency_ms"`
	TraceId   string                `json:"trace_id,omitempty"`
}

type IngestResponse struct {
	DocumentId string `json:"document_id"`
	Category   string `json:"category"`
	FileName   string `json:"file_name"`
	Chunks     int    `json:"chunks"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type UploadResponse struct {
	InitJobResponse
	DocumentId string `json:"document_id"`
	Unchanged  bool   `json:"unchanged"`
}

type DocumentResponse struct {
	Id           string    `json:"id"`
	Category     string    `json:"category"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	Format       string    `json:"format"`
	SizeBytes    int64     `json:"size_bytes"`
	Status       string    `json:"status"`
	Chunks       int       `json:"chunks"`
	FirstSeen    time.Time `json:"first_seen"`
	LastVerified time.Time `json:"last_verified"`
	LastError    string    `json:"last_error,omitempty"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Count     int                `json:"count"`
}

type DocumentStatsResponse struct {
	Categories []documentModel.CategoryStats `json:"categories"`
	Total      int                           `json:"total"`
}

type UpdateTriggerResponse struct {
	Result    schedulerModel.TriggerResult `json:"result" example:"accepted"`
	StatusURL string                       `json:"status_url"`
}

type UpdateStatusResponse struct {
	Phase                schedulerModel.Phase         `json:"phase" example:"idle"`
	LastSuccess          *time.Time                   `json:"last_success,omitempty"`
	LastAttempt          *time.Time                   `json:"last_attempt,omitempty"`
	NextScheduledTime    time.Time                    `json:"next_scheduled_time"`
	TimeSinceLastSuccess string                       `json:"time_since_last_success,omitempty" example:"3h12m0s"`
	Interval             string                       `json:"interval" example:"12h0m0s"`
	DocumentsAdded       int                          `json:"documents_added"`
	LastError            string                       `json:"last_error,omitempty"`
	LastCycle            *schedulerModel.CycleSummary `json:"last_cycle,omitempty"`
}

type HealthResponse struct {
	Status     string `json:"status" example:"ok"`
	QueuedJobs int    `json:"queued_jobs" example:"0"`
}

// requests---------------------

type AskRequest struct {
	Question string `json:"question" validate:"required" example:"What is the grace period for renewal of health policies?"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}
