package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/adapter"
	"github.com/akolanti/ComplianceGPT/internal/adapter/utils"
	"github.com/akolanti/ComplianceGPT/internal/api"
	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
	"github.com/akolanti/ComplianceGPT/internal/job"
	"github.com/akolanti/ComplianceGPT/internal/rag"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

// Scheduler is the control surface of the update scheduler.
type Scheduler interface {
	TriggerForceUpdate(ctx context.Context) schedulerModel.TriggerResult
	Status(ctx context.Context) schedulerModel.Status
}

// Uploader stores manually uploaded documents.
type Uploader interface {
	Upload(ctx context.Context, category documentModel.Category, name, title string, data []byte) (documentModel.DocumentRecord, bool, error)
}

type Dependencies struct {
	JobService   *job.Service
	Rag          rag.Service
	Scheduler    Scheduler
	Tracker      documentModel.Tracker
	Uploader     Uploader
	QueryTimeout time.Duration
}

type Handler struct {
	*JobHandler
	rag          rag.Service
	scheduler    Scheduler
	tracker      documentModel.Tracker
	uploader     Uploader
	queryTimeout time.Duration
	logger       *logger_i.Logger
	now          func() time.Time
}

func New(deps Dependencies) *Handler {
	timeout := deps.QueryTimeout
	if timeout <= 0 {
		timeout = config.QueryTimeout
	}
	return &Handler{
		JobHandler:   NewJobHandler(deps.JobService),
		rag:          deps.Rag,
		scheduler:    deps.Scheduler,
		tracker:      deps.Tracker,
		uploader:     deps.Uploader,
		queryTimeout: timeout,
		logger:       logger_i.NewLogger("RequestHandler"),
		now:          time.Now,
	}
}

// HealthHandler godoc
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /healthz [get]
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "ok", QueuedJobs: h.service.Pending()})
}

// AskHandler godoc
// @Summary      Ask a compliance question
// @Description  Answers synchronously from the indexed IRDAI documents, with citations. A rate limited model returns 503 with Retry-After.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request  body      api.AskRequest       true  "Question"
// @Success      200      {object}  api.AnswerResponse   "Answer, possibly with no_results set"
// @Failure      400      {object}  api.JobResponse      "Empty question"
// @Failure      502      {object}  api.JobResponse      "Model failure"
// @Failure      503      {object}  api.JobResponse      "Model rate limited, retry later"
// @Failure      500      {object}  api.JobResponse      "Internal error, carries the trace id"
// @Router       /ask [post]
func (h *Handler) AskHandler(w http.ResponseWriter, r *http.Request) {
	question, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	log := h.logger.ForContext(r.Context())

	// a disconnected caller does not cancel the query
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.queryTimeout)
	type outcome struct {
		result queryModel.QueryResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer cancel()
		result, err := h.rag.Answer(ctx, question)
		done <- outcome{result, err}
	}()

	select {
	case <-r.Context().Done():
		log.Warn("Caller left before the answer was ready, result will be discarded")
		return
	case o := <-done:
		if o.err != nil {
			writeDomainError(w, r.Context(), "", o.err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToAnswerResponse(o.result, traceIdFrom(r.Context())))
	}
}

// QuestionHandler godoc
// @Summary      Queue a compliance question
// @Description  Queues the question for the worker pool and returns a job ID to poll.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request  body      api.AskRequest       true  "Question"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Empty question"
// @Failure      503      {object}  api.JobResponse      "Queue full"
// @Router       /questions [post]
func (h *Handler) QuestionHandler(w http.ResponseWriter, r *http.Request) {
	question, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	h.queueJob(w, r, newJobData{
		id:       utils.GetNewUUID(),
		traceId:  traceIdFrom(r.Context()),
		jobType:  jobModel.JobTypeQuery,
		question: question,
	})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a question or ingestion job.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "The current status of the job"
// @Failure      404  {object}  api.JobResponse   "Job not found"
// @Router       /status/{id} [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := h.GetJobStatus(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostDocumentHandler godoc
// @Summary      Upload a document for ingestion
// @Description  Stores a PDF, Excel or Word file under a category and queues its ingestion. Re-uploading identical bytes of an ingested document queues nothing.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        category  formData  string  true   "regulation, circular, notification or guideline"
// @Param        title     formData  string  false  "Display name used in citations"
// @Param        document  formData  file    true   "The document"
// @Success      202  {object}  api.UploadResponse  "Ingestion queued"
// @Success      200  {object}  api.UploadResponse  "Already ingested, nothing to do"
// @Failure      400  {object}  api.JobResponse     "Missing fields or file too large"
// @Failure      422  {object}  api.JobResponse     "Unsupported format"
// @Router       /documents [post]
func (h *Handler) PostDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	log := h.logger.ForContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}
	category, err := documentModel.ParseCategory(r.FormValue("category"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", err.Error())
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document file is required")
		return
	}
	defer fileReader.Close()
	data, err := io.ReadAll(fileReader)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not read file")
		return
	}

	record, unchanged, err := h.uploader.Upload(r.Context(), category, fileMetadata.Filename, title, data)
	if err != nil {
		log.Warn("Upload rejected", "file", fileMetadata.Filename, "error", err)
		writeDomainError(w, r.Context(), "", err)
		return
	}
	if unchanged && record.Status == documentModel.StatusIngested {
		writeJsonResponse(w, http.StatusOK, api.UploadResponse{DocumentId: record.ID, Unchanged: true})
		return
	}

	newJob := newJobData{
		id:         utils.GetNewUUID(),
		traceId:    traceIdFrom(r.Context()),
		jobType:    jobModel.JobTypeIngest,
		documentId: record.ID,
		category:   string(category),
		fileName:   fileMetadata.Filename,
	}
	if err := h.CreateNewJob(r.Context(), newJob); err != nil {
		h.writeQueueError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusAccepted, api.UploadResponse{
		InitJobResponse: adapter.ToInitJobResponse(newJob.id),
		DocumentId:      record.ID,
		Unchanged:       unchanged,
	})
}

// ListDocumentsHandler godoc
// @Summary      List tracked documents
// @Tags         Documents
// @Produce      json
// @Param        category  query     string  false  "Limit to one category"
// @Success      200  {object}  api.DocumentListResponse
// @Failure      400  {object}  api.JobResponse  "Unknown category"
// @Router       /documents [get]
func (h *Handler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	categories := documentModel.Categories
	if raw := r.URL.Query().Get("category"); raw != "" {
		category, err := documentModel.ParseCategory(raw)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "", err.Error())
			return
		}
		categories = []documentModel.Category{category}
	}

	var records []documentModel.DocumentRecord
	for _, category := range categories {
		found, err := h.tracker.ListByCategory(r.Context(), category)
		if err != nil {
			writeDomainError(w, r.Context(), "", err)
			return
		}
		records = append(records, found...)
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentListResponse(records))
}

// DocumentStatsHandler godoc
// @Summary      Per-category document statistics
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  api.DocumentStatsResponse
// @Router       /documents/stats [get]
func (h *Handler) DocumentStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := tracker.Stats(r.Context(), h.tracker)
	if err != nil {
		writeDomainError(w, r.Context(), "", err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentStatsResponse(stats))
}

// TriggerUpdateHandler godoc
// @Summary      Force an update cycle
// @Description  Starts a crawl and ingestion cycle now. While a cycle is already running the request is coalesced into it.
// @Tags         Updates
// @Produce      json
// @Success      202  {object}  api.UpdateTriggerResponse  "accepted"
// @Success      200  {object}  api.UpdateTriggerResponse  "coalesced"
// @Router       /updates [post]
func (h *Handler) TriggerUpdateHandler(w http.ResponseWriter, r *http.Request) {
	result := h.scheduler.TriggerForceUpdate(r.Context())
	code := http.StatusOK
	if result == schedulerModel.Accepted {
		code = http.StatusAccepted
	}
	writeJsonResponse(w, code, api.UpdateTriggerResponse{Result: result, StatusURL: "/updates/status"})
}

// UpdateStatusHandler godoc
// @Summary      Update scheduler status
// @Tags         Updates
// @Produce      json
// @Success      200  {object}  api.UpdateStatusResponse
// @Router       /updates/status [get]
func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.scheduler.Status(r.Context())
	writeJsonResponse(w, http.StatusOK, adapter.ToUpdateStatusResponse(status, h.now()))
}

func (h *Handler) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !validateContext(r.Context()) {
		return "", false
	}
	defer r.Body.Close()

	var requestData api.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		h.logger.ForContext(r.Context()).Warn("Bad question request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return "", false
	}
	question := strings.TrimSpace(requestData.Question)
	if question == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "question must not be empty")
		return "", false
	}
	return question, true
}

func (h *Handler) queueJob(w http.ResponseWriter, r *http.Request, newJob newJobData) {
	if err := h.CreateNewJob(r.Context(), newJob); err != nil {
		h.writeQueueError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

func (h *Handler) writeQueueError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, job.ErrQueueFull) {
		writeJobError(w, "", jobModel.JobError{
			Code:       http.StatusServiceUnavailable,
			Message:    "Too many queued requests, please try again shortly",
			Retry:      true,
			RetryAfter: adapter.RetryAfterSeconds,
		}, traceIdFrom(r.Context()))
		return
	}
	writeDomainError(w, r.Context(), "", err)
}
