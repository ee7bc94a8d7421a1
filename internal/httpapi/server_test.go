package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/retryq/internal/clock"
	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/engine"
	"github.com/rezkam/retryq/internal/objectstore"
	"github.com/rezkam/retryq/internal/retrypolicy"
	"github.com/rezkam/retryq/internal/sender"
)

type fakeGateway struct {
	mu        sync.Mutex
	active    map[string]*domain.Record
	listErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{active: make(map[string]*domain.Record)}
}

func (g *fakeGateway) PutActive(ctx context.Context, record *domain.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[record.MessageID] = record
	return nil
}

func (g *fakeGateway) GetActive(ctx context.Context, messageID string) (*domain.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.active[messageID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return r, nil
}

func (g *fakeGateway) DeleteActive(ctx context.Context, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, messageID)
	return nil
}

func (g *fakeGateway) ListActive(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	ids := make([]string, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *fakeGateway) PutSuccess(ctx context.Context, record *domain.Record) error { return nil }
func (g *fakeGateway) PutFailed(ctx context.Context, record *domain.Record) error  { return nil }

var _ objectstore.Gateway = (*fakeGateway)(nil)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	gw := newFakeGateway()
	clk := clock.NewReal()
	eng := engine.New(gw, retrypolicy.NewDefaultPolicy(), clk, sender.NewScripted(nil), nil)
	s := NewServer(eng, gw)
	return s, eng
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleSend_AcceptsValidSubmission(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.HandleSend, http.MethodPost, "/api/send", sendRequest{Content: "hello"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.MessageID)
}

func TestHandleSend_RejectsInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.HandleSend(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSend_RejectsDuplicateMessageID(t *testing.T) {
	s, _ := newTestServer(t)
	req := sendRequest{MessageID: "fixed-id", Content: "hello"}

	rec1 := doJSON(t, s.HandleSend, http.MethodPost, "/api/send", req)
	assert.Equal(t, http.StatusAccepted, rec1.Code)

	rec2 := doJSON(t, s.HandleSend, http.MethodPost, "/api/send", req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestHandleSend_ServiceUnavailableAfterShutdown(t *testing.T) {
	s, eng := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	defer cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 0)
	defer shutdownCancel()
	_ = eng.Shutdown(shutdownCtx) // may time out immediately; draining flag is set regardless

	rec := doJSON(t, s.HandleSend, http.MethodPost, "/api/send", sendRequest{Content: "late"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSendBulk_SubmitsCount(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.HandleSendBulk, http.MethodPost, "/api/send-bulk", sendBulkRequest{Content: "hi", Count: 3})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp sendBulkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Submitted)
}

func TestHandleSendBulk_RejectsNonPositiveCount(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.HandleSendBulk, http.MethodPost, "/api/send-bulk", sendBulkRequest{Content: "hi", Count: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats_ReportsPendingCount(t *testing.T) {
	s, _ := newTestServer(t)
	doJSON(t, s.HandleSend, http.MethodPost, "/api/send", sendRequest{Content: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.HandleStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pending)
}

func TestHandleHealth_UnhealthyUntilDispatcherMarkedAlive(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.HandleHealth(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.MarkDispatcherAlive()
	rec = httptest.NewRecorder()
	s.HandleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth_UnhealthyWhenGatewayProbeFails(t *testing.T) {
	s, _ := newTestServer(t)
	s.MarkDispatcherAlive()
	s.gateway.(*fakeGateway).listErr = assert.AnError

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.HandleHealth(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
