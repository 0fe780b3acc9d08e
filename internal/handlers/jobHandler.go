package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/job"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

type JobHandler struct {
	service *job.Service
	logger  *logger_i.Logger
}

func NewJobHandler(jobService *job.Service) *JobHandler {
	return &JobHandler{service: jobService, logger: logger_i.NewLogger("JobHandler")}
}

type newJobData struct {
	id         string
	traceId    string
	jobType    jobModel.JobType
	question   string
	documentId string
	category   string
	fileName   string
}

// CreateNewJob saves the job as queued and hands it to the worker pool.
func (h *JobHandler) CreateNewJob(ctx context.Context, newJob newJobData) error {
	log := h.logger.ForContext(ctx).With("jobId", newJob.id, "jobType", newJob.jobType)

	_job := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		JobType:     newJob.jobType,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
	}
	if newJob.jobType == jobModel.JobTypeIngest {
		_job.CurrentStep = jobModel.IngestInit
		_job.JobPayload.DocumentID = newJob.documentId
		_job.JobPayload.Category = newJob.category
		_job.JobPayload.FileName = newJob.fileName
	} else {
		_job.CurrentStep = jobModel.UserQueryInit
		_job.JobPayload.Question = newJob.question
	}

	if err := h.service.Enqueue(ctx, _job); err != nil {
		if errors.Is(err, job.ErrQueueFull) {
			log.Warn("Job queue full, request abandoned")
		} else {
			log.Error("Failed to queue job", "error", err)
		}
		return err
	}
	log.Info("Created new job", "pending", h.service.Pending())
	return nil
}

func (h *JobHandler) GetJobStatus(ctx context.Context, id string) (jobModel.Job, bool) {
	if id == "" {
		h.logger.ForContext(ctx).Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return h.service.JobStore.GetJob(ctx, id)
}
