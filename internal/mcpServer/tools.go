package mcpServer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/adapter"
	"github.com/akolanti/ComplianceGPT/internal/api"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	Question string `json:"question" jsonschema:"the compliance question about IRDAI regulations"`
}

type EmptyInput struct{}

type TriggerOutput struct {
	Result string `json:"result"`
}

type ListDocumentsInput struct {
	Category string `json:"category,omitempty" jsonschema:"one of regulation, circular, notification, guideline; empty for all"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of documents to return (default 50)"`
}

const defaultDocumentLimit = 50

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_compliance_question",
		Description: "Answer a question from the indexed IRDAI regulatory documents, with citations",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_status",
		Description: "Report the document update scheduler state and when it last ran",
	}, s.handleUpdateStatus)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "trigger_update",
		Description: "Start a crawl of the IRDAI site now; coalesced if one is already running",
	}, s.handleTriggerUpdate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List tracked regulatory documents and their ingestion status",
	}, s.handleListDocuments)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, api.AnswerResponse, error) {
	result, err := s.ports.Answerer.Answer(ctx, input.Question)
	if err != nil {
		jobErr := adapter.ToJobError(err, "")
		s.logger.ForContext(ctx).Warn("mcp question failed", "error", err)
		return nil, api.AnswerResponse{}, errors.New(jobErr.Message)
	}
	return nil, adapter.ToAnswerResponse(result, ""), nil
}

func (s *Server) handleUpdateStatus(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, api.UpdateStatusResponse, error) {
	return nil, adapter.ToUpdateStatusResponse(s.ports.Scheduler.Status(ctx), time.Now()), nil
}

func (s *Server) handleTriggerUpdate(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, TriggerOutput, error) {
	return nil, TriggerOutput{Result: string(s.ports.Scheduler.TriggerForceUpdate(ctx))}, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, api.DocumentListResponse, error) {
	categories := documentModel.Categories
	if input.Category != "" {
		category, err := documentModel.ParseCategory(input.Category)
		if err != nil {
			return nil, api.DocumentListResponse{}, err
		}
		categories = []documentModel.Category{category}
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultDocumentLimit
	}

	var records []documentModel.DocumentRecord
	for _, category := range categories {
		found, err := s.ports.Tracker.ListByCategory(ctx, category)
		if err != nil {
			return nil, api.DocumentListResponse{}, fmt.Errorf("listing %s documents: %w", category, err)
		}
		records = append(records, found...)
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return nil, adapter.ToDocumentListResponse(records), nil
}
