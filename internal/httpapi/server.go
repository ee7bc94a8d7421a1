// Package httpapi is the thin external HTTP surface described in §6: it is
// not part of the core scheduling engine, only a boundary onto it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/engine"
	"github.com/rezkam/retryq/internal/httpapi/response"
	"github.com/rezkam/retryq/internal/objectstore"
)

// Server holds the collaborators the HTTP handlers need: the engine for
// submission and stats, and the gateway for the health probe.
type Server struct {
	engine  *engine.Engine
	gateway objectstore.Gateway

	dispatcherAlive atomic.Bool
}

// NewServer builds a Server. Call MarkDispatcherAlive/MarkDispatcherStopped
// around the goroutine running engine.Run so /health reflects its state.
func NewServer(eng *engine.Engine, gw objectstore.Gateway) *Server {
	return &Server{engine: eng, gateway: gw}
}

// MarkDispatcherAlive flips the health check to healthy.
func (s *Server) MarkDispatcherAlive() { s.dispatcherAlive.Store(true) }

// MarkDispatcherStopped flips the health check to unhealthy.
func (s *Server) MarkDispatcherStopped() { s.dispatcherAlive.Store(false) }

type sendRequest struct {
	Content   string `json:"content"`
	MessageID string `json:"message_id,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// HandleSend implements POST /api/send.
func (s *Server) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	id, err := s.engine.Submit(r.Context(), domain.Message{MessageID: messageID, Content: req.Content})
	if err != nil {
		s.handleSubmitError(w, r, err)
		return
	}

	response.Accepted(w, sendResponse{MessageID: id})
}

type sendBulkRequest struct {
	Content string `json:"content"`
	Count   int    `json:"count"`
}

type sendBulkResponse struct {
	Submitted int `json:"submitted"`
}

// HandleSendBulk implements POST /api/send-bulk.
func (s *Server) HandleSendBulk(w http.ResponseWriter, r *http.Request) {
	var req sendBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.Count <= 0 {
		response.BadRequest(w, "count must be positive")
		return
	}

	submitted := 0
	for range req.Count {
		_, err := s.engine.Submit(r.Context(), domain.Message{MessageID: uuid.NewString(), Content: req.Content})
		if err != nil {
			s.handleSubmitError(w, r, err)
			return
		}
		submitted++
	}

	response.Accepted(w, sendBulkResponse{Submitted: submitted})
}

func (s *Server) handleSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrShutdownInProgress):
		response.ServiceUnavailable(w, err.Error())
	case errors.Is(err, domain.ErrEmptyMessageID), errors.Is(err, domain.ErrDuplicateMessageID):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, r, err)
	}
}

type statsResponse struct {
	Pending        int    `json:"pending"`
	TotalSubmitted uint64 `json:"total_submitted"`
	TotalSucceeded uint64 `json:"total_succeeded"`
	TotalFailed    uint64 `json:"total_failed"`
	NextDueAt      *int64 `json:"next_due_at_epoch_millis,omitempty"`
}

// HandleStats implements GET /api/stats.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Stats()
	resp := statsResponse{
		Pending:        st.Pending,
		TotalSubmitted: st.TotalSubmitted,
		TotalSucceeded: st.TotalSucceeded,
		TotalFailed:    st.TotalFailed,
	}
	if st.NextDueAt != nil {
		ms := st.NextDueAt.UnixMilli()
		resp.NextDueAt = &ms
	}
	response.OK(w, resp)
}

// HandleHealth implements GET /health: 200 only if the dispatcher goroutine
// is alive and a cheap gateway probe succeeds.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.dispatcherAlive.Load() {
		response.ServiceUnavailable(w, "dispatcher not running")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.gateway.ListActive(ctx); err != nil {
		response.ServiceUnavailable(w, fmt.Sprintf("object store probe failed: %v", err))
		return
	}

	response.OK(w, map[string]string{"status": "ok"})
}
