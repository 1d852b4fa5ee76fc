// Package api is the REST client for the remote medication directory and
// dose ledger.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/model"
)

// Options configures a Client. Zero values take the defaults noted.
type Options struct {
	// BaseURL is the root URL of the API (e.g., https://meds.example.com).
	BaseURL string

	// Token is the Bearer token. It can be changed later with SetToken.
	Token string

	// Timeout bounds each HTTP attempt. Default 30s.
	Timeout time.Duration

	// RetryCount is how many times 429 and 5xx responses are retried.
	// Default 3; negative disables retries.
	RetryCount int

	// RetryWait and RetryMaxWait bound the exponential backoff.
	// Defaults 1s and 30s.
	RetryWait    time.Duration
	RetryMaxWait time.Duration

	// Location is the reference timezone used to read date-only fields.
	Location *time.Location

	// DefaultLeadMinutes applies when a medication omits leadMinutes.
	DefaultLeadMinutes int

	Logger *zap.Logger
}

// Client talks to the medication API. It handles Bearer authentication,
// JSON (de)serialization and retry with backoff on 429 and 5xx.
type Client struct {
	http        *resty.Client
	loc         *time.Location
	defaultLead int
	logger      *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a new API client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetRetryAfter(retryAfter).
		AddRetryCondition(shouldRetry).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        httpClient,
		loc:         opts.Location,
		defaultLead: opts.DefaultLeadMinutes,
		logger:      opts.Logger,
		token:       opts.Token,
	}
}

// SetToken replaces the Bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current Bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetBaseURL points the client at another API root. Call it only while no
// requests are in flight, e.g. before a session starts.
func (c *Client) SetBaseURL(baseURL string) {
	c.http.SetBaseURL(strings.TrimRight(baseURL, "/"))
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// Me returns the signed-in user. It doubles as a session check.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("checking session: %w", err)
	}
	return &user, nil
}

// FetchActiveMedications returns the medications the directory marks active.
func (c *Client) FetchActiveMedications(ctx context.Context) ([]model.Medication, error) {
	var wire []Medication
	err := c.do(ctx, http.MethodGet, "/api/medications", func(r *resty.Request) {
		r.SetQueryParam("active", "true")
	}, &wire)
	if err != nil {
		return nil, fmt.Errorf("fetching medications: %w", err)
	}

	meds := make([]model.Medication, 0, len(wire))
	for _, m := range wire {
		meds = append(meds, m.toModel(c.loc, c.defaultLead))
	}
	return meds, nil
}

// FetchTodayDoseRecords returns the ledger records for the given day key.
func (c *Client) FetchTodayDoseRecords(ctx context.Context, day string) ([]model.DoseRecord, error) {
	var wire []DoseRecord
	err := c.do(ctx, http.MethodGet, "/api/doses", func(r *resty.Request) {
		r.SetQueryParam("date", day)
	}, &wire)
	if err != nil {
		return nil, fmt.Errorf("fetching dose records for %s: %w", day, err)
	}

	records := make([]model.DoseRecord, 0, len(wire))
	for _, d := range wire {
		records = append(records, d.toModel())
	}
	return records, nil
}

// CreateDoseRecord logs a dose that has no ledger record yet.
func (c *Client) CreateDoseRecord(
	ctx context.Context,
	medicationID string,
	scheduledTime time.Time,
	status model.DoseStatus,
	notes string,
) (model.DoseRecord, error) {
	body := CreateDoseRequest{
		MedicationID:  medicationID,
		ScheduledTime: scheduledTime.UTC(),
		Status:        status,
		Notes:         notes,
	}

	var wire DoseRecord
	err := c.do(ctx, http.MethodPost, "/api/doses", func(r *resty.Request) {
		r.SetBody(body)
	}, &wire)
	if err != nil {
		return model.DoseRecord{}, fmt.Errorf("creating dose record for %s: %w", medicationID, err)
	}

	c.logger.Debug("dose record created",
		zap.String("medication_id", medicationID),
		zap.String("status", status.String()),
	)
	return wire.toModel(), nil
}

// ResolveDose updates the status of an existing ledger record.
func (c *Client) ResolveDose(
	ctx context.Context,
	id string,
	status model.DoseStatus,
	notes string,
) (model.DoseRecord, error) {
	body := UpdateDoseRequest{Status: status, Notes: notes}

	var wire DoseRecord
	err := c.do(ctx, http.MethodPatch, "/api/doses/"+url.PathEscape(id), func(r *resty.Request) {
		r.SetBody(body)
	}, &wire)
	if err != nil {
		return model.DoseRecord{}, fmt.Errorf("updating dose record %s: %w", id, err)
	}

	c.logger.Debug("dose record updated",
		zap.String("dose_id", id),
		zap.String("status", status.String()),
	)
	return wire.toModel(), nil
}

// do executes one request and maps the response onto result or an error.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	build func(*resty.Request),
	result interface{},
) error {
	var errBody errorBody
	req := c.http.R().
		SetContext(ctx).
		SetError(&errBody)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if result != nil {
		req.SetResult(result)
	}
	if build != nil {
		build(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return &AuthError{Message: "session expired or token rejected; sign in again"}
	}

	if resp.IsError() {
		msg := errBody.text()
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		c.logger.Warn("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
		)
		return &APIError{
			Status:  resp.StatusCode(),
			Method:  method,
			Path:    path,
			Message: msg,
		}
	}

	return nil
}

// shouldRetry retries rate limiting and server errors.
func shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryAfter honors a Retry-After header given in seconds. A zero duration
// lets resty fall back to its exponential backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil {
		return 0, nil
	}
	if header := resp.Header().Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second, nil
		}
	}
	return 0, nil
}
