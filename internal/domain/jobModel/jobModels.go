package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit    InternalStatus = "Init"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	CacheCall        InternalStatus = "CacheCall"
	VectorDBCall     InternalStatus = "VectorDB"
	LLMCall          InternalStatus = "LLM"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Retry      bool   `json:"retry"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type JobPayload struct {
	Question  string                `json:"question,omitempty"`
	Answer    string                `json:"answer,omitempty"`
	Citations []queryModel.Citation `json:"citations,omitempty"`
	NoResults bool                  `json:"no_results,omitempty"`
	Cached    bool                  `json:"cached,omitempty"`
	LatencyMs int64                 `json:"latency_ms,omitempty"`

	DocumentID string `json:"document_id,omitempty"`
	Category   string `json:"category,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
