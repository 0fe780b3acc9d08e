package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/api"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("/status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:       job.Error.Code,
			Message:    job.Error.Message,
			Retry:      job.Error.Retry,
			RetryAfter: job.Error.RetryAfter,
			TraceId:    job.TraceId,
		}
	}

	result := api.Result{Status: string(job.Status)}
	switch job.JobType {
	case jobModel.JobTypeIngest:
		result.IngestResponse = &api.IngestResponse{
			DocumentId: job.JobPayload.DocumentID,
			Category:   job.JobPayload.Category,
			FileName:   job.JobPayload.FileName,
			Chunks:     job.JobPayload.Chunks,
		}
	default:
		if job.Status == jobModel.JobStatusComplete {
			result.AnswerResponse = &api.AnswerResponse{
				Question:  job.JobPayload.Question,
				Answer:    job.JobPayload.Answer,
				Citations: nonNil(job.JobPayload.Citations),
				NoResults: job.JobPayload.NoResults,
				Cached:    job.JobPayload.Cached,
				LatencyMs: job.JobPayload.LatencyMs,
			}
		}
	}

	return api.JobResponse{
		Id:        job.Id,
		Type:      string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToAnswerResponse(result queryModel.QueryResult, traceId string) api.AnswerResponse {
	return api.AnswerResponse{
		Question:  result.Question,
		Answer:    result.Answer,
		Citations: nonNil(result.Citations),
		NoResults: result.NoResults,
		Cached:    result.Cached,
		LatencyMs: result.Latency.Milliseconds(),
		TraceId:   traceId,
	}
}

func ToDocumentResponse(record documentModel.DocumentRecord) api.DocumentResponse {
	return api.DocumentResponse{
		Id:           record.ID,
		Category:     string(record.Category),
		Title:        record.DisplayName(),
		SourceURL:    record.SourceURL,
		Format:       string(record.Format),
		SizeBytes:    record.SizeBytes,
		Status:       string(record.Status),
		Chunks:       record.ChunkCount,
		FirstSeen:    record.FirstSeen,
		LastVerified: record.LastVerified,
		LastError:    record.LastError,
	}
}

func ToDocumentListResponse(records []documentModel.DocumentRecord) api.DocumentListResponse {
	docs := make([]api.DocumentResponse, 0, len(records))
	for _, r := range records {
		docs = append(docs, ToDocumentResponse(r))
	}
	return api.DocumentListResponse{Documents: docs, Count: len(docs)}
}

func ToDocumentStatsResponse(stats []documentModel.CategoryStats) api.DocumentStatsResponse {
	total := 0
	for _, s := range stats {
		total += s.Total
	}
	return api.DocumentStatsResponse{Categories: stats, Total: total}
}

func ToUpdateStatusResponse(status schedulerModel.Status, now time.Time) api.UpdateStatusResponse {
	res := api.UpdateStatusResponse{
		Phase:             status.Phase,
		NextScheduledTime: status.NextScheduledTime,
		Interval:          status.Interval,
		DocumentsAdded:    status.DocumentsAdded,
		LastError:         status.LastError,
		LastCycle:         status.LastCycle,
	}
	if !status.LastSuccess.IsZero() {
		t := status.LastSuccess
		res.LastSuccess = &t
		res.TimeSinceLastSuccess = now.Sub(t).Truncate(time.Second).String()
	}
	if !status.LastAttempt.IsZero() {
		t := status.LastAttempt
		res.LastAttempt = &t
	}
	return res
}

func BadRequest(id string, message string, code int) api.JobResponse {
	return ErrorResponse(id, jobModel.JobError{Code: code, Message: message}, "")
}

func ErrorResponse(id string, jobErr jobModel.JobError, traceId string) api.JobResponse {
	return api.JobResponse{
		Id: id,
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:       jobErr.Code,
			Message:    jobErr.Message,
			Retry:      jobErr.Retry,
			RetryAfter: jobErr.RetryAfter,
			TraceId:    traceId,
		},
	}
}

func nonNil(citations []queryModel.Citation) []queryModel.Citation {
	if citations == nil {
		return []queryModel.Citation{}
	}
	return citations
}
