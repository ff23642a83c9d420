package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ytscribe/config"
	"ytscribe/transcript"
	"ytscribe/youtube"
)

// Client drives one transcription run at a time against the Apify API:
// submit the actor run, poll it to a terminal state, then fetch the
// default dataset. Nothing is retried; every failure is terminal for
// the invocation.
type Client struct {
	baseURL string
	actorID string
	token   string

	httpClient *http.Client
	limiter    *rate.Limiter

	submitTimeout time.Duration
	pollTimeout   time.Duration
	fetchTimeout  time.Duration
	pollInterval  time.Duration
	maxWait       time.Duration

	// OnRunStarted, when set, is called with the run ID as soon as the
	// provider assigns one, so the caller can abort the run from outside
	// while Run is still blocked polling.
	OnRunStarted func(runID string)

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:       cfg.APIBaseURL,
		actorID:       cfg.ActorID,
		token:         cfg.APIToken,
		httpClient:    &http.Client{},
		limiter:       rate.NewLimiter(rate.Every(cfg.RateLimitInterval), cfg.RateLimit),
		submitTimeout: cfg.SubmitTimeout,
		pollTimeout:   cfg.PollTimeout,
		fetchTimeout:  cfg.FetchTimeout,
		pollInterval:  cfg.PollInterval,
		maxWait:       cfg.MaxWait,
		now:           time.Now,
		sleep:         sleepContext,
	}
}

type runData struct {
	ID               string `json:"id"`
	Status           Status `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type runEnvelope struct {
	Data runData `json:"data"`
}

// Run submits a transcription job for videoID, waits for it to finish and
// returns the first dataset item. An empty language means the actor picks
// one.
func (c *Client) Run(ctx context.Context, videoID, language string) (*transcript.Record, error) {
	logger := logrus.WithField("video_id", videoID)

	run, err := c.submit(ctx, videoID, language)
	if err != nil {
		return nil, err
	}

	logger = logger.WithField("run_id", run.ID)
	logger.Info("Actor run started")

	if c.OnRunStarted != nil {
		c.OnRunStarted(run.ID)
	}

	run, err = c.waitForRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	logger.WithField("dataset_id", run.DefaultDatasetID).Info("Actor run succeeded")

	return c.fetchRecord(ctx, run.DefaultDatasetID)
}

func (c *Client) submit(ctx context.Context, videoID, language string) (*runData, error) {
	const op = "submit"

	input := map[string]interface{}{
		"urls":         []string{youtube.WatchURL(videoID)},
		"outputFormat": "captions",
	}
	if language != "" {
		input["preferredLanguage"] = language
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/acts/"+c.actorID+"/runs"), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrInvalidToken
	case http.StatusPaymentRequired:
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var envelope runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrap(err, "decoding response")}
	}
	if envelope.Data.ID == "" {
		return nil, &TransportError{Op: op, Err: errors.New("response carries no run ID")}
	}

	return &envelope.Data, nil
}

// waitForRun polls the run at a constant interval until it succeeds, fails
// remotely, or the local wall-clock budget runs out. The budget is a hard
// stop regardless of how slowly individual polls come back.
func (c *Client) waitForRun(ctx context.Context, runID string) (*runData, error) {
	start := c.now()

	for {
		if c.now().Sub(start) > c.maxWait {
			return nil, ErrWaitTimeout
		}

		run, err := c.pollRun(ctx, runID)
		if err != nil {
			return nil, err
		}

		if run.Status == StatusSucceeded {
			return run, nil
		}
		if run.Status.Terminal() {
			return nil, &RunFailedError{Status: run.Status}
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (c *Client) pollRun(ctx context.Context, runID string) (*runData, error) {
	const op = "poll"

	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/actor-runs/"+runID), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: op, Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var envelope runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrap(err, "decoding response")}
	}

	return &envelope.Data, nil
}

func (c *Client) fetchRecord(ctx context.Context, datasetID string) (*transcript.Record, error) {
	const op = "fetch"

	if datasetID == "" {
		return nil, &TransportError{Op: op, Err: errors.New("run carries no dataset ID")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/datasets/"+datasetID+"/items"), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: op, Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var items []transcript.Record
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrap(err, "decoding dataset items")}
	}
	if len(items) == 0 {
		return nil, ErrNoTranscript
	}

	record := items[0]
	return &record, nil
}

// Abort asks the provider to stop a run. Best effort: the remote run keeps
// billing until the provider acts on it, so callers fire this on interrupt
// rather than rely on process exit.
func (c *Client) Abort(ctx context.Context, runID string) error {
	const op = "abort"

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/actor-runs/"+runID+"/abort"), nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?token=" + url.QueryEscape(c.token)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
