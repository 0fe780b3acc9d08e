// Package mcpServer exposes the question, update and document surfaces as
// MCP tools over the streamable HTTP transport.
package mcpServer

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

var (
	ErrMissingAnswerer  = errors.New("mcp: question answering is required")
	ErrMissingScheduler = errors.New("mcp: scheduler is required")
	ErrMissingTracker   = errors.New("mcp: document tracker is required")
)

type Answerer interface {
	Answer(ctx context.Context, question string) (queryModel.QueryResult, error)
}

type Scheduler interface {
	TriggerForceUpdate(ctx context.Context) schedulerModel.TriggerResult
	Status(ctx context.Context) schedulerModel.Status
}

type Ports struct {
	Answerer  Answerer
	Scheduler Scheduler
	Tracker   documentModel.Tracker
}

func (p *Ports) Validate() error {
	switch {
	case p.Answerer == nil:
		return ErrMissingAnswerer
	case p.Scheduler == nil:
		return ErrMissingScheduler
	case p.Tracker == nil:
		return ErrMissingTracker
	}
	return nil
}

type Server struct {
	ports  *Ports
	server *mcp.Server
	logger *logger_i.Logger
}

func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: "compliance-gpt", Version: Version}, nil),
		logger: logger_i.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Handler serves the MCP streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// Run serves MCP over stdio until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
