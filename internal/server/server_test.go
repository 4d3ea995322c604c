package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtualta/internal/adapter/retriever"
	"virtualta/internal/adapter/store"
	"virtualta/internal/domain"
	"virtualta/internal/usecase"
)

type answerBody struct {
	Response string   `json:"response"`
	Links    []string `json:"links"`
	Images   []string `json:"images"`
}

type stubAsker struct {
	mu        sync.Mutex
	resp      domain.AnswerResponse
	err       error
	questions []string
}

func (a *stubAsker) Ask(_ context.Context, question string) (domain.AnswerResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.questions = append(a.questions, question)
	return a.resp, a.err
}

// wordEmbedder maps known words to axes so tests control similarity.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		out[i] = []float32{
			float32(strings.Count(t, "deadline")),
			float32(strings.Count(t, "docker")),
			float32(strings.Count(t, "grading")),
		}
	}
	return out, nil
}

func (wordEmbedder) ModelName() string { return "word" }

type fixedChat struct{ answer string }

func (c fixedChat) Complete(context.Context, string, string) (string, error) { return c.answer, nil }

func (c fixedChat) ModelName() string { return "fixed" }

func newPipeline(t *testing.T, answer string, records ...domain.VectorRecord) http.Handler {
	t.Helper()
	idx := store.NewVectorIndex()
	require.NoError(t, idx.Add(records...))

	retr := retriever.NewSemanticRetriever(idx, wordEmbedder{})
	uc := usecase.NewQueryUseCase(retr, usecase.NewAnswerer(fixedChat{answer: answer}), usecase.NewConfidenceGate(), 6, nil)
	return New(uc, nil, Options{}).Handler()
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) (*httptest.ResponseRecorder, answerBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body answerBody
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func assertEmptyLists(t *testing.T, raw []byte) {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.JSONEq(t, `[]`, string(m["links"]))
	assert.JSONEq(t, `[]`, string(m["images"]))
}

func TestAskNoMatchingDocuments(t *testing.T) {
	h := newPipeline(t, "unused")

	rec, body := postForm(t, h, "/api/", url.Values{"question": {"When is the deadline?"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No relevant documents found.", body.Response)
	assertEmptyLists(t, rec.Body.Bytes())
}

func TestAskLowConfidenceAnswer(t *testing.T) {
	h := newPipeline(t, "Sorry, I couldn't find that.",
		domain.VectorRecord{Embedding: []float32{1, 0, 0}, Chunk: domain.Chunk{Text: "deadline", Metadata: domain.Metadata{Source: "urlA"}}},
	)

	rec, body := postForm(t, h, "/api/", url.Values{"question": {"deadline?"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The system couldn't find a confident answer. Please try rephrasing.", body.Response)
	assertEmptyLists(t, rec.Body.Bytes())
}

func TestAskConfidentAnswerDeduplicatesLinks(t *testing.T) {
	h := newPipeline(t, "X",
		domain.VectorRecord{Embedding: []float32{1, 0, 0}, Chunk: domain.Chunk{Text: "a", Metadata: domain.Metadata{Source: "urlA", Image: "imgA"}}},
		domain.VectorRecord{Embedding: []float32{0.9, 0.1, 0}, Chunk: domain.Chunk{Text: "b", Metadata: domain.Metadata{Source: "urlB"}}},
		domain.VectorRecord{Embedding: []float32{0.8, 0.2, 0}, Chunk: domain.Chunk{Text: "c", Metadata: domain.Metadata{Source: "urlA", Image: "imgA"}}},
	)

	rec, body := postForm(t, h, "/api/", url.Values{"question": {"deadline"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "X", body.Response)
	assert.Equal(t, []string{"urlA", "urlB"}, body.Links)
	assert.Equal(t, []string{"imgA"}, body.Images)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestAskMalformedImageIsIgnored(t *testing.T) {
	asker := &stubAsker{resp: domain.AnswerResponse{Response: "normal answer", Links: []string{}, Images: []string{}}}
	h := New(asker, nil, Options{}).Handler()

	rec, body := postForm(t, h, "/api/", url.Values{"question": {"q"}, "image": {"not-base64!!"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "normal answer", body.Response)
	assert.Equal(t, []string{"q"}, asker.questions)
}

func TestAskMultipartWithImage(t *testing.T) {
	asker := &stubAsker{resp: domain.AnswerResponse{Response: "ok", Links: []string{}, Images: []string{}}}
	h := New(asker, nil, Options{}).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("question", "What is on the slide?"))
	require.NoError(t, mw.WriteField("image", base64.StdEncoding.EncodeToString([]byte("\x89PNG"))))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"What is on the slide?"}, asker.questions)
}

func TestAskRootAliasMatchesAPI(t *testing.T) {
	asker := &stubAsker{resp: domain.AnswerResponse{Response: "same", Links: []string{"l"}, Images: []string{}}}
	h := New(asker, nil, Options{}).Handler()

	recAPI, _ := postForm(t, h, "/api/", url.Values{"question": {"q"}})
	recRoot, _ := postForm(t, h, "/", url.Values{"question": {"q"}})

	assert.Equal(t, http.StatusOK, recRoot.Code)
	assert.JSONEq(t, recAPI.Body.String(), recRoot.Body.String())
}

func TestAskRequiresQuestion(t *testing.T) {
	asker := &stubAsker{}
	h := New(asker, nil, Options{}).Handler()

	rec, _ := postForm(t, h, "/api/", url.Values{"image": {"aGk="}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, asker.questions)
}

func TestAskBodyTooLarge(t *testing.T) {
	h := New(&stubAsker{}, nil, Options{MaxBodyBytes: 64}).Handler()

	rec, _ := postForm(t, h, "/api/", url.Values{"question": {strings.Repeat("q", 200)}})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAskUpstreamErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.UpstreamFailure(context.Background(), "chat completion", errors.New("401")), http.StatusBadGateway},
		{domain.UpstreamFailure(context.Background(), "embeddings request", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{errors.New("bug"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		h := New(&stubAsker{err: tt.err}, nil, Options{}).Handler()

		rec, body := postForm(t, h, "/api/", url.Values{"question": {"q"}})

		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, domain.FailureText, body.Response)
		assert.NotEqual(t, domain.LowConfidenceText, body.Response)
		assertEmptyLists(t, rec.Body.Bytes())
	}
}

func TestHealthPage(t *testing.T) {
	h := New(&stubAsker{}, nil, Options{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Virtual TA is running")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := New(&stubAsker{}, nil, Options{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	h := New(&stubAsker{}, nil, Options{}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/", nil)
	req.Header.Set("Origin", "https://exam.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://exam.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := New(&stubAsker{}, nil, Options{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&stubAsker{}, nil, Options{ShutdownTimeout: time.Second}).Serve(ctx, ln)
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
