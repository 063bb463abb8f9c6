// Package backend is a client for the document back end's education API:
// per-session document progress (which carries each document's mindmap),
// summaries, quizzes and reading progress.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request
	DefaultTimeout = 15 * time.Second

	// MaxResponseSize caps how much of a response body is read
	MaxResponseSize = 10 << 20
)

var (
	// ErrUnauthorized is returned for 401 and 403 responses
	ErrUnauthorized = errors.New("backend: unauthorized")

	// ErrNotFound is returned for 404 responses
	ErrNotFound = errors.New("backend: not found")
)

// APIError is a non-2xx response
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Detail)
}

// Unwrap maps auth and lookup failures onto the package sentinels
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables limiting
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the /edu endpoints
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient validates the base URL and builds a client
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https, got %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:    base,
		token:   opts.Token,
		http:    hc,
		limiter: limiter,
		logger:  logger.Named("backend"),
	}, nil
}

// SessionProgress lists every document attached to a chat session
func (c *Client) SessionProgress(ctx context.Context, sessionID int64) ([]DocumentProgress, error) {
	var out []DocumentProgress
	path := "/edu/progress/session/" + strconv.FormatInt(sessionID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("session %d progress: %w", sessionID, err)
	}
	return out, nil
}

// Document finds one document in a session's progress list
func (c *Client) Document(ctx context.Context, sessionID, pdfID int64) (*DocumentProgress, error) {
	docs, err := c.SessionProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == pdfID {
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("document %d in session %d: %w", pdfID, sessionID, ErrNotFound)
}

// Summary fetches a document's markdown summary
func (c *Client) Summary(ctx context.Context, pdfID int64) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/edu/summary/"+strconv.FormatInt(pdfID, 10), nil, nil, &out); err != nil {
		return "", fmt.Errorf("summary %d: %w", pdfID, err)
	}
	return out.Summary, nil
}

// Quiz fetches a document's quiz
func (c *Client) Quiz(ctx context.Context, pdfID int64) (*Quiz, error) {
	var out Quiz
	if err := c.do(ctx, http.MethodGet, "/edu/quiz/"+strconv.FormatInt(pdfID, 10), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("quiz %d: %w", pdfID, err)
	}
	return &out, nil
}

// SubmitQuiz sends answers keyed by question id and returns the grade
func (c *Client) SubmitQuiz(ctx context.Context, quizID, sessionID int64, answers map[int64]int64) (*QuizResult, error) {
	body := make(map[string]int64, len(answers))
	for q, a := range answers {
		body[strconv.FormatInt(q, 10)] = a
	}
	query := url.Values{"session_id": {strconv.FormatInt(sessionID, 10)}}

	var out QuizResult
	if err := c.do(ctx, http.MethodPost, "/edu/quiz/"+strconv.FormatInt(quizID, 10)+"/submit", query, body, &out); err != nil {
		return nil, fmt.Errorf("submit quiz %d: %w", quizID, err)
	}
	return &out, nil
}

// TrackRead marks a document as read within a session
func (c *Client) TrackRead(ctx context.Context, pdfID, sessionID int64) error {
	query := url.Values{"session_id": {strconv.FormatInt(sessionID, 10)}}
	if err := c.do(ctx, http.MethodPost, "/edu/track/"+strconv.FormatInt(pdfID, 10)+"/read", query, nil, nil); err != nil {
		return fmt.Errorf("track read %d: %w", pdfID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorDetail pulls the message out of a {"detail": ...} body
func errorDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(data))
}
