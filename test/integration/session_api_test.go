package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/backend"
	"github.com/searchprobe/searchprobe/internal/core/engine"
	"github.com/searchprobe/searchprobe/internal/observability"
	"github.com/searchprobe/searchprobe/internal/server"
	"github.com/searchprobe/searchprobe/internal/server/handlers"
	"github.com/searchprobe/searchprobe/internal/server/middleware"
)

// fakeBackend serves the three backend routes with canned answers and records
// feedback bodies.
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	feedback []core.FeedbackSubmission
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("/static/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("prompt") == "explode" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":{"message":"ranker crashed","id":"err-42"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "search-1",
			"count": 2,
			"results": [
				{"name": "Joe's Violin", "contacts": {"email": ["a@b.com", "c@d.com"]}, "source": "http://x"},
				{"name": "Strings Co", "contacts": {"phone": "555-1111"}, "source": "http://y", "rating": 4.9, "rating_count": 12}
			],
			"meta": {"time": 1.2, "search_query": "` + r.URL.Query().Get("prompt") + `"}
		}`))
	})
	mux.HandleFunc("/static/reverse-yelp/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rating": 4.5, "rating_count": 30}`))
	})
	mux.HandleFunc("/feedback", func(w http.ResponseWriter, r *http.Request) {
		var submission core.FeedbackSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fb.mu.Lock()
		fb.feedback = append(fb.feedback, submission)
		fb.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})

	fb.Server = &httptest.Server{Listener: listenOrSkip(t), Config: &http.Server{Handler: mux}}
	fb.Start()
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) submissions() []core.FeedbackSubmission {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]core.FeedbackSubmission(nil), fb.feedback...)
}

func newSessionManager(baseURL string) *server.SessionManager {
	client := &backend.Client{
		BaseURL: baseURL,
		Limiter: &engine.RateLimiter{Store: &engine.MemoryRateStore{}},
		Timeout: 5 * time.Second,
	}
	return server.NewSessionManager(func() *engine.SearchController {
		return engine.NewSearchController(engine.ControllerOptions{
			Searcher:   client,
			Enrichment: engine.BoardOptions{Lookup: client},
			Feedback:   engine.SubmitterOptions{Sender: client},
		})
	}, time.Minute)
}

type apiClient struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	session string
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(c.t, err)
	if c.session != "" {
		req.Header.Set(middleware.SessionIDHeader, c.session)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close() // nolint:errcheck // test cleanup

	if c.session == "" {
		c.session = resp.Header.Get(middleware.SessionIDHeader)
	}
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSessionAPI_SearchEnrichFeedback(t *testing.T) {
	observability.InitCLILogger("test", false)
	handlers.InitHealthManager("test")

	fb := newFakeBackend(t)
	sessions := newSessionManager(fb.URL)
	t.Cleanup(sessions.Close)

	ts, httpClient := newTestServer(t, newAppServer(server.Options{Sessions: sessions, CountryCode: "US", LocationBased: true}).Handler())
	api := &apiClient{t: t, baseURL: ts.URL, client: httpClient}

	var state handlers.StateView
	status := api.do(http.MethodGet, "/api/search?goal=violin+tutor&location=Austin", nil, &state)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, api.session)
	assert.Equal(t, engine.PhaseReady, state.Phase)
	require.NotNil(t, state.Result)
	assert.Equal(t, "search-1", state.Result.ID)
	assert.Equal(t, []string{"a@b.com", "c@d.com"}, state.Result.Results[0].Contacts.Email.Values())
	require.Len(t, state.Enrichment, 1, "only the unrated vendor gets an agent")
	assert.Equal(t, core.EnrichmentNotStarted, state.Enrichment[0].Status)

	var outcome core.EnrichmentOutcome
	status = api.do(http.MethodPost, "/api/vendors/0/enrich", nil, &outcome)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, core.EnrichmentSucceeded, outcome.Status)
	require.NotNil(t, outcome.Rating)
	assert.InDelta(t, 4.5, *outcome.Rating, 0.001)

	status = api.do(http.MethodPost, "/api/vendors/1/enrich", nil, nil)
	assert.Equal(t, http.StatusConflict, status, "rated vendors are not enriched")

	var ack engine.Ack
	status = api.do(http.MethodPost, "/api/feedback", map[string]string{"message": "great", "rating": "9"}, &ack)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "search-1", ack.SearchID)
	assert.Equal(t, http.StatusCreated, ack.StatusCode)

	submissions := fb.submissions()
	require.Len(t, submissions, 1)
	assert.Equal(t, 9, submissions[0].Rating)
	assert.Equal(t, "violin tutor", submissions[0].Prompt)
	assert.Len(t, submissions[0].Snapshot, 2)

	// A second session starts idle and does not see the first one's results.
	other := &apiClient{t: t, baseURL: ts.URL, client: httpClient}
	var otherState handlers.StateView
	require.Equal(t, http.StatusOK, other.do(http.MethodGet, "/api/state", nil, &otherState))
	assert.NotEqual(t, api.session, other.session)
	assert.Equal(t, engine.PhaseIdle, otherState.Phase)
	assert.Nil(t, otherState.Result)
}

func TestSessionAPI_ServerFaultIsPublished(t *testing.T) {
	observability.InitCLILogger("test", false)

	fb := newFakeBackend(t)
	sessions := newSessionManager(fb.URL)
	t.Cleanup(sessions.Close)

	ts, httpClient := newTestServer(t, newAppServer(server.Options{Sessions: sessions, CountryCode: "US", LocationBased: true}).Handler())
	api := &apiClient{t: t, baseURL: ts.URL, client: httpClient}

	var state handlers.StateView
	status := api.do(http.MethodGet, "/api/search?goal=explode&location=Austin", nil, &state)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, engine.PhaseFailed, state.Phase)
	require.NotNil(t, state.Error)
	assert.Equal(t, core.SearchErrorServerFault, state.Error.Kind)
	assert.Equal(t, "ranker crashed", state.Error.Message)
	assert.Equal(t, "err-42", state.Error.ID)
	assert.Nil(t, state.Result)

	// Feedback needs a completed search.
	status = api.do(http.MethodPost, "/api/feedback", map[string]string{"rating": "5"}, nil)
	assert.Equal(t, http.StatusConflict, status)
}
