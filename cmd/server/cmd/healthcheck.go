package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
)

type healthcheckOptions struct {
	url     string
	timeout time.Duration
	retries uint
}

func newHealthcheckCommand() *cobra.Command {
	opts := &healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

Used by container HEALTHCHECK directives. Exits 0 when the server reports
healthy or degraded, non-zero otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := opts.url
			if url == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				url = fmt.Sprintf("http://localhost:%s/health", port)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := performHealthCheckWithRetries(ctx, url, opts.retries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", resp.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "overall timeout")
	cmd.Flags().UintVar(&opts.retries, "retries", 3, "attempts before giving up")
	return cmd
}

// HealthResponse mirrors the body served by /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// performHealthCheck treats degraded as passing: a warning (for example a
// disabled job queue) should not restart the container.
func performHealthCheck(ctx context.Context, url string) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return HealthResponse{}, fmt.Errorf("invalid health response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("unhealthy: status %d (%s)", resp.StatusCode, body.Status)
	}
	if body.Status != "healthy" && body.Status != "degraded" {
		return body, fmt.Errorf("unhealthy: status=%s", body.Status)
	}
	return body, nil
}

func performHealthCheckWithRetries(ctx context.Context, url string, attempts uint) (HealthResponse, error) {
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	return backoff.Retry(ctx, func() (HealthResponse, error) {
		return performHealthCheck(ctx, url)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(attempts))
}
