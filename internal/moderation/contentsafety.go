package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAPIVersion of the Azure AI Content Safety text:analyze operation.
	DefaultAPIVersion = "2023-10-01"
	// DefaultThreshold flags text at medium severity or above on the four-level scale.
	DefaultThreshold = 4
	// DefaultRateLimit is 10 requests per second
	DefaultRateLimit = rate.Limit(10)
	// DefaultTimeout bounds a single call when the caller sets no deadline.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// ContentSafetyClient classifies text with Azure AI Content Safety. Text is Unsafe
// when any category severity reaches the threshold.
type ContentSafetyClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	apiVersion string
	threshold  int
	categories []string
	limiter    *rate.Limiter
}

// Option configures a ContentSafetyClient.
type Option func(*ContentSafetyClient)

func WithHTTPClient(client *http.Client) Option {
	return func(c *ContentSafetyClient) {
		c.httpClient = client
	}
}

// WithRateLimit sets a custom rate limit (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *ContentSafetyClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithThreshold sets the minimum severity that makes text Unsafe.
func WithThreshold(severity int) Option {
	return func(c *ContentSafetyClient) {
		if severity > 0 {
			c.threshold = severity
		}
	}
}

// WithCategories restricts analysis to the named harm categories.
func WithCategories(categories ...string) Option {
	return func(c *ContentSafetyClient) {
		c.categories = categories
	}
}

func NewContentSafetyClient(endpoint, apiKey string, opts ...Option) *ContentSafetyClient {
	client := &ContentSafetyClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: DefaultAPIVersion,
		threshold:  DefaultThreshold,
		categories: []string{"Hate", "SelfHarm", "Sexual", "Violence"},
		limiter:    rate.NewLimiter(DefaultRateLimit, 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type analyzeRequest struct {
	Text       string   `json:"text"`
	Categories []string `json:"categories,omitempty"`
	OutputType string   `json:"outputType"`
}

type categoryAnalysis struct {
	Category string `json:"category"`
	Severity *int   `json:"severity"`
}

type analyzeResponse struct {
	BlocklistsMatch    []json.RawMessage  `json:"blocklistsMatch"`
	CategoriesAnalysis []categoryAnalysis `json:"categoriesAnalysis"`
}

// Classify calls text:analyze once. Any failure is reported as ErrUnavailable.
func (c *ContentSafetyClient) Classify(ctx context.Context, text string) (Verdict, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Unsafe, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	payload, err := json.Marshal(analyzeRequest{
		Text:       text,
		Categories: c.categories,
		OutputType: "FourSeverityLevels",
	})
	if err != nil {
		return Unsafe, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	url := fmt.Sprintf("%s/contentsafety/text:analyze?api-version=%s", c.endpoint, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Unsafe, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Unsafe, fmt.Errorf("%w: http request: %v", ErrUnavailable, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return Unsafe, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Unsafe, fmt.Errorf("%w: unexpected status %d: %s", ErrUnavailable, resp.StatusCode, truncate(body, 200))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Unsafe, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}
	if len(parsed.CategoriesAnalysis) == 0 {
		return Unsafe, fmt.Errorf("%w: response carried no category analysis", ErrUnavailable)
	}

	if len(parsed.BlocklistsMatch) > 0 {
		return Unsafe, nil
	}
	for _, category := range parsed.CategoriesAnalysis {
		if category.Severity != nil && *category.Severity >= c.threshold {
			return Unsafe, nil
		}
	}
	return Safe, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
