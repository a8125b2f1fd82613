package macroapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "http://localhost:8000"

// Options parameterise the API client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Observer  Observer
}

// Client is a thin JSON client for the MacroPulse backend. It never retries.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "macroapi").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// BaseURL returns the normalised backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchInflation retrieves the chronological CPI history.
func (c *Client) FetchInflation(ctx context.Context) ([]InflationPoint, error) {
	var points []InflationPoint
	if err := c.do(ctx, http.MethodGet, PathInflation, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// FetchPrediction retrieves the next-month forecast.
func (c *Client) FetchPrediction(ctx context.Context) (PredictionResult, error) {
	var res PredictionResult
	if err := c.do(ctx, http.MethodGet, PathPredict, nil, &res); err != nil {
		return PredictionResult{}, err
	}
	return res, nil
}

// FetchRisk retrieves the recession-risk indicator.
func (c *Client) FetchRisk(ctx context.Context) (RiskIndicator, error) {
	var res RiskIndicator
	if err := c.do(ctx, http.MethodGet, PathRisk, nil, &res); err != nil {
		return RiskIndicator{}, err
	}
	return res, nil
}

// FetchPhillipsCurve retrieves the scatter points.
func (c *Client) FetchPhillipsCurve(ctx context.Context) ([]PhillipsPoint, error) {
	var points []PhillipsPoint
	if err := c.do(ctx, http.MethodGet, PathPhillipsCurve, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// PredictInflation posts an unemployment scenario and returns the predicted inflation.
func (c *Client) PredictInflation(ctx context.Context, unemploymentRate float64) (float64, error) {
	var res PredictResponse
	if err := c.do(ctx, http.MethodPost, PathPredict, PredictRequest{UnemploymentRate: unemploymentRate}, &res); err != nil {
		return 0, err
	}
	return res.PredictedInflation, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, dest any) (err error) {
	start := time.Now()
	defer func() {
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveRequest(path, time.Since(start), err)
		}
	}()

	var body io.Reader
	if payload != nil {
		encoded, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return fmt.Errorf("marshal %s payload: %w", path, marshalErr)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "macropulse/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(path, resp.StatusCode, payloadBytes)
	}
	// the backend reports missing data as 200 {"error": "..."}
	if msg := embeddedError(payloadBytes); msg != "" {
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(payloadBytes, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Dur("took", time.Since(start)).Msg("api request completed")
	return nil
}

// StatusError is a non-2xx (or in-band error) answer from the backend.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("macropulse api error %s (%d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("macropulse api error %s (%d)", e.Endpoint, e.StatusCode)
}

type errorResponse struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func embeddedError(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	var apiErr errorResponse
	if err := json.Unmarshal(trimmed, &apiErr); err != nil {
		return ""
	}
	return apiErr.Error
}

func parseHTTPError(path string, status int, payload []byte) error {
	statusErr := &StatusError{Endpoint: path, StatusCode: status}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		switch {
		case apiErr.Error != "":
			statusErr.Message = apiErr.Error
			return statusErr
		case len(apiErr.Detail) > 0:
			var detail string
			if json.Unmarshal(apiErr.Detail, &detail) == nil {
				statusErr.Message = detail
			} else {
				statusErr.Message = string(apiErr.Detail)
			}
			return statusErr
		}
	}
	statusErr.Message = strings.TrimSpace(string(payload))
	return statusErr
}

var (
	_ DashboardSource = (*Client)(nil)
	_ PhillipsSource  = (*Client)(nil)
)
