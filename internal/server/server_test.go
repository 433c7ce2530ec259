package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
	"github.com/joseph-ayodele/order-analyzer/internal/export"
	"github.com/joseph-ayodele/order-analyzer/internal/uploads"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAnalyzer struct {
	res   *entity.AnalysisResult
	err   error
	got   []byte
	reqID string
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, pdf []byte) (*entity.AnalysisResult, error) {
	f.calls++
	f.got = pdf
	f.reqID = common.RequestIDFromContext(ctx)
	return f.res, f.err
}

type fakeExporter struct{}

func (fakeExporter) ResultXLSX(context.Context, *entity.AnalysisResult) ([]byte, error) {
	return []byte("PK-xlsx"), nil
}

func newTestServer(t *testing.T, a Analyzer, limit int64, opts ...Option) (*gin.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	spool, err := uploads.NewSpool(dir, limit, nil)
	require.NoError(t, err)
	s := New(Config{CORSOrigin: "http://localhost:5173", MaxUploadBytes: limit}, a, spool, opts...)
	return s.Router(), dir
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func sampleResult() *entity.AnalysisResult {
	order := "A-123"
	return entity.NewAnalysisResult(entity.DocumentHeader{OrderNumber: &order}, nil, constants.ConfidenceHigh, "Auftrag A-123")
}

func TestAnalyzeReturnsResultJSON(t *testing.T) {
	a := &fakeAnalyzer{res: sampleResult()}
	r, dir := newTestServer(t, a, 1<<20)

	body, ct := multipartBody(t, "pdf", "auftrag.pdf", "application/pdf", []byte("%PDF-1.4 test"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decodeBody(t, rec)
	assert.Equal(t, "A-123", m["kopfdaten"].(map[string]any)["auftragsnummer"])
	assert.Equal(t, []any{}, m["positionen"])
	assert.Equal(t, "high", m["confidence"])
	assert.Equal(t, "Auftrag A-123", m["rawText"])

	assert.Equal(t, "%PDF-1.4 test", string(a.got))
	assert.Equal(t, "req-1", a.reqID)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spooled upload must be released")
}

func TestAnalyzeWithoutFile(t *testing.T) {
	a := &fakeAnalyzer{}
	r, _ := newTestServer(t, a, 1<<20)

	body, ct := multipartBody(t, "document", "x.pdf", "application/pdf", []byte("%PDF-"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m := decodeBody(t, rec)
	assert.Equal(t, "No file uploaded", m["error"])
	assert.Contains(t, m, "details")
	assert.Equal(t, 0, a.calls)
}

func TestAnalyzeRejectsNonPDF(t *testing.T) {
	a := &fakeAnalyzer{}
	r, _ := newTestServer(t, a, 1<<20)

	body, ct := multipartBody(t, "pdf", "bild.png", "image/png", []byte("\x89PNG"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only PDF files are allowed", decodeBody(t, rec)["error"])
	assert.Equal(t, 0, a.calls)
}

func TestAnalyzeRejectsOversizedUpload(t *testing.T) {
	a := &fakeAnalyzer{}
	r, dir := newTestServer(t, a, 1024)

	body, ct := multipartBody(t, "pdf", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large", decodeBody(t, rec)["error"])
	assert.Equal(t, 0, a.calls)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestAnalyzeMapsPipelineErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		summary string
	}{
		{common.NewAppErrorWithDetails(common.CodeEmptyContent, "Could not extract text from PDF", "The PDF might be empty or contain only images", nil), 400, "Could not extract text from PDF"},
		{common.NewAppError(common.CodeCompletionTransient, "Failed to analyze PDF", errors.New("503")), 500, "Failed to analyze PDF"},
		{errors.New("boom"), 500, "Internal server error"},
	}
	for _, tc := range cases {
		r, _ := newTestServer(t, &fakeAnalyzer{err: tc.err}, 1<<20)
		body, ct := multipartBody(t, "pdf", "a.pdf", "application/pdf", []byte("%PDF-"))
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code)
		m := decodeBody(t, rec)
		assert.Equal(t, tc.summary, m["error"])
		assert.NotEmpty(t, m["details"])
	}
}

func TestAnalyzeXLSX(t *testing.T) {
	r, _ := newTestServer(t, &fakeAnalyzer{res: sampleResult()}, 1<<20, WithExporter(fakeExporter{}))

	body, ct := multipartBody(t, "pdf", "auftrag.pdf", "application/pdf", []byte("%PDF-"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze?format=xlsx", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="auftrag.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK-xlsx", rec.Body.String())
}

func TestHealthAndIndex(t *testing.T) {
	var latched error
	r, _ := newTestServer(t, &fakeAnalyzer{}, 1<<20, WithHealth(func() error { return latched }))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "service": ServiceName}, decodeBody(t, rec))

	latched = errors.New("anthropic completion failed (terminal, auth)")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ServiceName, decodeBody(t, rec)["message"])
}

func TestMethodNotAllowedAndPreflight(t *testing.T) {
	r, _ := newTestServer(t, &fakeAnalyzer{}, 1<<20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	// other origins are refused
	req = httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunsDisabled(t *testing.T) {
	r, _ := newTestServer(t, &fakeAnalyzer{}, 1<<20)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGRPCHealthFollowsCheck(t *testing.T) {
	var latched error
	gs, h := NewGRPCServer(func() error { return latched }, nil)
	defer gs.Stop()

	resp, err := h.hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: GRPCHealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	latched = errors.New("auth")
	h.refresh()
	resp, err = h.hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { h.Run(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
