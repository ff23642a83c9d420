package apify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ytscribe/config"
)

// fakeAPI scripts the provider's three endpoints for one actor run.
type fakeAPI struct {
	statuses       []Status // consumed one per poll, last one repeats
	datasetItems   string   // raw JSON array served for the dataset
	submitStatus   int      // non-zero forces this HTTP status on submit
	pollHTTPStatus int      // non-zero forces this HTTP status on polls

	submits   int
	polls     int
	aborts    int
	lastToken string
	lastInput map[string]interface{}
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastToken = r.URL.Query().Get("token")

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/abort"):
			f.aborts++
			fmt.Fprint(w, `{"data":{"id":"run-1","status":"ABORTING"}}`)

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/runs"):
			f.submits++
			if f.submitStatus != 0 {
				w.WriteHeader(f.submitStatus)
				return
			}
			json.NewDecoder(r.Body).Decode(&f.lastInput)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"data":{"id":"run-1","status":"READY"}}`)

		case strings.HasPrefix(r.URL.Path, "/actor-runs/"):
			if f.pollHTTPStatus != 0 {
				w.WriteHeader(f.pollHTTPStatus)
				return
			}
			i := f.polls
			if i >= len(f.statuses) {
				i = len(f.statuses) - 1
			}
			f.polls++
			fmt.Fprintf(w, `{"data":{"id":"run-1","status":%q,"defaultDatasetId":"ds-1"}}`, f.statuses[i])

		case strings.HasPrefix(r.URL.Path, "/datasets/"):
			fmt.Fprint(w, f.datasetItems)

		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(srvURL string) *Client {
	c := NewClient(&config.Config{
		APIToken:          "test-token",
		ActorID:           "karamelo~youtube-transcripts",
		APIBaseURL:        srvURL,
		SubmitTimeout:     5 * time.Second,
		PollTimeout:       5 * time.Second,
		FetchTimeout:      5 * time.Second,
		PollInterval:      2 * time.Second,
		MaxWait:           120 * time.Second,
		RateLimit:         1000,
		RateLimitInterval: time.Millisecond,
	})

	// Simulated clock: sleeping just advances it, so polling loops run
	// without real delay.
	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}
	return c
}

func TestRun_Success(t *testing.T) {
	api := &fakeAPI{
		statuses:     []Status{StatusRunning, StatusRunning, StatusSucceeded},
		datasetItems: `[{"title":"Some Video","captions":[{"text":"hello","start":0,"duration":1.5}]}]`,
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	record, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if record.Title != "Some Video" {
		t.Errorf("expected title 'Some Video', got %q", record.Title)
	}
	if len(record.Captions) != 1 || record.Captions[0].Text != "hello" {
		t.Errorf("unexpected captions: %+v", record.Captions)
	}
	if api.polls != 3 {
		t.Errorf("expected 3 polls, got %d", api.polls)
	}
	if api.lastToken != "test-token" {
		t.Errorf("expected token query param, got %q", api.lastToken)
	}

	urls, ok := api.lastInput["urls"].([]interface{})
	if !ok || len(urls) != 1 || urls[0] != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("unexpected submit urls: %v", api.lastInput["urls"])
	}
	if api.lastInput["outputFormat"] != "captions" {
		t.Errorf("expected outputFormat 'captions', got %v", api.lastInput["outputFormat"])
	}
	if _, present := api.lastInput["preferredLanguage"]; present {
		t.Error("preferredLanguage should be omitted when no language is set")
	}
}

func TestRun_PreferredLanguage(t *testing.T) {
	api := &fakeAPI{
		statuses:     []Status{StatusSucceeded},
		datasetItems: `[{"text":"hallo"}]`,
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Run(context.Background(), "dQw4w9WgXcQ", "de"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if api.lastInput["preferredLanguage"] != "de" {
		t.Errorf("expected preferredLanguage 'de', got %v", api.lastInput["preferredLanguage"])
	}
}

func TestRun_InvalidToken(t *testing.T) {
	api := &fakeAPI{submitStatus: http.StatusUnauthorized}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if api.polls != 0 {
		t.Errorf("expected no polls after auth failure, got %d", api.polls)
	}
}

func TestRun_QuotaExceeded(t *testing.T) {
	api := &fakeAPI{submitStatus: http.StatusPaymentRequired}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestRun_SubmitServerError(t *testing.T) {
	api := &fakeAPI{submitStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Op != "submit" {
		t.Errorf("expected op 'submit', got %q", transportErr.Op)
	}
}

func TestRun_RemoteFailure(t *testing.T) {
	api := &fakeAPI{statuses: []Status{StatusRunning, StatusFailed}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")

	var failedErr *RunFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("expected RunFailedError, got %v", err)
	}
	if failedErr.Status != StatusFailed {
		t.Errorf("expected status FAILED, got %s", failedErr.Status)
	}
	if !strings.Contains(err.Error(), "failed") {
		t.Errorf("expected error message tagged 'failed', got %q", err.Error())
	}
}

func TestRun_WaitTimeout(t *testing.T) {
	api := &fakeAPI{statuses: []Status{StatusRunning}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}

	// 120s budget at one poll per simulated 2s
	if api.polls != 61 {
		t.Errorf("expected 61 polls before giving up, got %d", api.polls)
	}
}

func TestRun_PollTransportError(t *testing.T) {
	api := &fakeAPI{pollHTTPStatus: http.StatusBadGateway}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Op != "poll" {
		t.Errorf("expected op 'poll', got %q", transportErr.Op)
	}
}

func TestRun_EmptyDataset(t *testing.T) {
	api := &fakeAPI{
		statuses:     []Status{StatusSucceeded},
		datasetItems: `[]`,
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Run(context.Background(), "dQw4w9WgXcQ", "")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestRun_OnRunStarted(t *testing.T) {
	api := &fakeAPI{
		statuses:     []Status{StatusSucceeded},
		datasetItems: `[{"text":"hi"}]`,
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	var startedID string
	client.OnRunStarted = func(id string) { startedID = id }

	if _, err := client.Run(context.Background(), "dQw4w9WgXcQ", ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if startedID != "run-1" {
		t.Errorf("expected OnRunStarted with 'run-1', got %q", startedID)
	}
}

func TestAbort(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.Abort(context.Background(), "run-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if api.aborts != 1 {
		t.Errorf("expected 1 abort call, got %d", api.aborts)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	for _, s := range []Status{StatusReady, StatusRunning, Status("ABORTING")} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
