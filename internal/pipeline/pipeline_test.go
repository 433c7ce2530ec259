package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/async"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
	"github.com/joseph-ayodele/order-analyzer/internal/extract"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
	"github.com/joseph-ayodele/order-analyzer/internal/repository"
	"github.com/joseph-ayodele/order-analyzer/internal/testutil"
)

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type authFailingProvider struct{ calls int }

func (p *authFailingProvider) Name() string         { return "fake" }
func (p *authFailingProvider) DefaultModel() string { return "fake-model" }
func (p *authFailingProvider) Send(context.Context, llm.Request) (string, error) {
	p.calls++
	return "", llm.ClassifyStatus("fake", http.StatusUnauthorized, errors.New("invalid x-api-key"))
}

type memQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *memQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Shutdown(context.Context) {}

func orderPDF() []byte {
	return testutil.MinimalPDF(
		"Auftragsbestaetigung A-123",
		"Datum: 01.03.2024",
		"Pos 1 Widget 2 Stk 9,99 EUR 19,98 EUR",
		"Gesamtbetrag brutto 19,98 EUR",
	)
}

func newTestPipeline(c llm.Completer, opts ...Option) *Pipeline {
	return New(extract.NewExtractor(extract.Config{}, nil), c, opts...)
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var ae *common.AppError
	require.True(t, errors.As(err, &ae), "expected *common.AppError, got %T", err)
	return ae.Code
}

func TestScenarioEmptyUploadMakesNoCall(t *testing.T) {
	c := &fakeCompleter{reply: "{}"}
	p := newTestPipeline(c)

	res, err := p.Analyze(context.Background(), nil)
	assert.Nil(t, res)
	assert.Equal(t, common.CodeUpload, codeOf(t, err))
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatus(err))
	assert.Equal(t, 0, c.calls)
}

func TestScenarioImageOnlyPDFMakesNoCall(t *testing.T) {
	c := &fakeCompleter{reply: "{}"}
	p := newTestPipeline(c)

	_, err := p.Analyze(context.Background(), testutil.MinimalPDF())
	assert.Equal(t, common.CodeEmptyContent, codeOf(t, err))
	assert.ErrorIs(t, err, extract.ErrEmptyContent)
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatus(err))
	assert.Equal(t, 0, c.calls)

	summary, details := common.Describe(err)
	assert.Equal(t, "Could not extract text from PDF", summary)
	assert.Equal(t, "The PDF might be empty or contain only images", details)
}

func TestNonPDFIsExtractionError(t *testing.T) {
	c := &fakeCompleter{}
	p := newTestPipeline(c)

	_, err := p.Analyze(context.Background(), []byte("PK\x03\x04 definitely a zip"))
	assert.Equal(t, common.CodeExtraction, codeOf(t, err))
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatus(err))
	assert.Equal(t, 0, c.calls)
}

func TestScenarioEnglishKeyReply(t *testing.T) {
	c := &fakeCompleter{reply: `{"header": {"orderNumber": "A-123", "grossTotal": 19.98},
		"lineItems": [{"position": 1, "description": "Widget", "quantity": 2, "unitPrice": 9.99, "total": 19.98}],
		"confidence": "high"}`}
	p := newTestPipeline(c)

	res, err := p.Analyze(context.Background(), orderPDF())
	require.NoError(t, err)
	require.NotNil(t, res.Header.OrderNumber)
	assert.Equal(t, "A-123", *res.Header.OrderNumber)
	assert.InDelta(t, 19.98, *res.Header.GrossTotal, 1e-9)
	require.Len(t, res.LineItems, 1)
	assert.InDelta(t, 19.98, res.LineItems[0].LineTotal, 1e-9)
	assert.Equal(t, constants.ConfidenceHigh, res.Confidence)

	require.Equal(t, 1, c.calls)
	assert.Contains(t, c.prompts[0], "Auftragsbestaetigung A-123")
	assert.Contains(t, res.RawText, "A-123")
}

func TestScenarioCodeFencedReply(t *testing.T) {
	c := &fakeCompleter{reply: "```json\n{\"kopfdaten\": {\"auftragsnummer\": \"A-123\"}, \"positionen\": [], \"confidence\": \"medium\"}\n```"}
	p := newTestPipeline(c)

	res, err := p.Analyze(context.Background(), orderPDF())
	require.NoError(t, err)
	assert.Equal(t, "A-123", *res.Header.OrderNumber)
	assert.NotNil(t, res.LineItems)
	assert.Empty(t, res.LineItems)
	assert.Equal(t, constants.ConfidenceMedium, res.Confidence)
}

func TestScenarioAuthFailureIsTerminalAndLatched(t *testing.T) {
	prov := &authFailingProvider{}
	client := llm.NewClient(prov, llm.Config{InitialBackoff: time.Millisecond}, nil)
	p := newTestPipeline(client)

	_, err := p.Analyze(context.Background(), orderPDF())
	assert.Equal(t, common.CodeCompletionTerminal, codeOf(t, err))
	assert.Equal(t, http.StatusInternalServerError, common.HTTPStatus(err))
	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, llm.ClassTerminal, ce.Class)
	assert.Equal(t, 1, prov.calls)

	_, err = p.Analyze(context.Background(), orderPDF())
	assert.Equal(t, common.CodeCompletionTerminal, codeOf(t, err))
	assert.Equal(t, 1, prov.calls, "latched client must not call the provider again")
}

func TestTransientCompletionFailure(t *testing.T) {
	c := &fakeCompleter{err: llm.ClassifyStatus("fake", http.StatusServiceUnavailable, nil)}
	p := newTestPipeline(c)

	_, err := p.Analyze(context.Background(), orderPDF())
	assert.Equal(t, common.CodeCompletionTransient, codeOf(t, err))
	summary, _ := common.Describe(err)
	assert.Equal(t, "Failed to analyze PDF", summary)
}

func TestMalformedReply(t *testing.T) {
	c := &fakeCompleter{reply: "Ich kann dieses Dokument leider nicht lesen."}
	p := newTestPipeline(c)

	_, err := p.Analyze(context.Background(), orderPDF())
	assert.Equal(t, common.CodeMalformedResponse, codeOf(t, err))
	var me *llm.MalformedResponseError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, c.reply, me.Raw)

	_, details := common.Describe(err)
	assert.Contains(t, details, c.reply)
}

func TestMalformedReplyDetailsAreBounded(t *testing.T) {
	c := &fakeCompleter{reply: "kein JSON " + strings.Repeat("x", 10_000)}
	p := newTestPipeline(c)

	_, err := p.Analyze(context.Background(), orderPDF())
	_, details := common.Describe(err)
	assert.Contains(t, details, "raw reply: kein JSON")
	assert.Less(t, len(details), rawDetailsRunes+200)
}

func TestProvenanceIsBoundedByRunes(t *testing.T) {
	line := strings.Repeat("Position Mutter M4 verzinkt ", 10)
	lines := make([]string, 0, 10)
	for range 10 {
		lines = append(lines, line)
	}
	c := &fakeCompleter{reply: `{"kopfdaten": {}}`}
	p := newTestPipeline(c)

	res, err := p.Analyze(context.Background(), testutil.MinimalPDF(lines...))
	require.NoError(t, err)
	assert.Equal(t, constants.ProvenanceChars, len([]rune(res.RawText)))
	assert.Equal(t, "ab", head("abc", 2))
	assert.Equal(t, "äö", head("äöü", 2))
	assert.Equal(t, "ä", head("ä", 5))
}

func TestRunLogAndEventsRecorded(t *testing.T) {
	db, err := repository.Open(context.Background(), repository.Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	defer db.Close()
	runs := repository.NewAnalysisRunRepository(db, nil)
	q := &memQueue{}

	c := &fakeCompleter{reply: `{"kopfdaten": {"auftragsnummer": "A-123", "waehrung": "EUR"}, "positionen": [
		{"position": 1, "beschreibung": "Widget", "menge": 2, "einzelpreis": 9.99, "gesamtpreis": 19.98}], "confidence": "high"}`}
	p := newTestPipeline(c, WithRunLog(runs), WithEvents(q), WithModelInfo("fake", "fake-model"))

	_, err = p.Analyze(context.Background(), orderPDF())
	require.NoError(t, err)
	_, err = p.Analyze(context.Background(), testutil.MinimalPDF())
	require.Error(t, err)

	recent, err := runs.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	byStatus := map[string]*entity.AnalysisRun{}
	for _, r := range recent {
		byStatus[r.Status] = r
	}
	ok := byStatus[string(constants.RunStatusOK)]
	require.NotNil(t, ok)
	assert.Equal(t, 1, ok.LineItems)
	assert.Equal(t, "high", *ok.Confidence)
	assert.Equal(t, "fake", ok.Provider)
	assert.Len(t, ok.SHA256, 64)
	failed := byStatus[string(constants.RunStatusFailed)]
	require.NotNil(t, failed)
	assert.Equal(t, common.CodeEmptyContent, *failed.ErrorCode)

	require.Len(t, q.jobs, 2)
	assert.Equal(t, "analysis.completed", q.jobs[0].Event.Type)
	assert.Equal(t, "A-123", *q.jobs[0].Event.OrderNumber)
	assert.Equal(t, ok.ID, q.jobs[0].Event.RunID)
	assert.Equal(t, "analysis.failed", q.jobs[1].Event.Type)
	assert.Equal(t, common.CodeEmptyContent, q.jobs[1].Event.ErrorCode)
	assert.NotEqual(t, uuid.Nil, q.jobs[1].Event.EventID)
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	c := completerFunc(func(ctx context.Context, _ string) (string, error) {
		seen = common.RequestIDFromContext(ctx)
		return `{"kopfdaten": {}}`, nil
	})
	p := newTestPipeline(c)

	ctx := common.WithRequestID(context.Background(), "req-42")
	_, err := p.Analyze(ctx, orderPDF())
	require.NoError(t, err)
	assert.Equal(t, "req-42", seen)
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }
