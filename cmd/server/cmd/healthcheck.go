package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// HealthResponse is the subset of the /readyz body the probe reads.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func newHealthcheckCommand() *cobra.Command {
	var (
		timeout time.Duration
		url     string
		port    int
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is ready",
		Long: `Calls /readyz and exits non-zero unless the server reports ready.

Used by the container HEALTHCHECK. A degraded server (for example with no
webhook configured) still passes unless --strict is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = fmt.Sprintf("http://localhost:%d/readyz", port)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			health, err := checkHealth(ctx, http.DefaultClient, url)
			if err != nil {
				return err
			}
			if strict && health.Status != "healthy" {
				return fmt.Errorf("server status: %s", health.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "server status: %s\n", health.Status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&url, "url", "", "readiness URL (default: http://localhost:{port}/readyz)")
	cmd.Flags().IntVar(&port, "port", 5000, "server port used to build the default URL")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail unless every check passes")
	return cmd
}

// checkHealth fetches url and fails on a non-200 status or an
// unrecognised body.
func checkHealth(ctx context.Context, client *http.Client, url string) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return HealthResponse{}, fmt.Errorf("parse health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("server not ready: status %d (%s)", resp.StatusCode, health.Status)
	}
	if health.Status == "" {
		return health, fmt.Errorf("parse health response: missing status")
	}
	return health, nil
}
