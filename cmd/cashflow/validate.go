package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/version"
)

type endpoint struct {
	path     string
	contains []string
}

var endpoints = []endpoint{
	{path: "/api/health", contains: []string{`"status":"ok"`}},
	{path: "/api/forecast"},
	{path: "/api/forecast/summary", contains: []string{`"closing_balance"`}},
	{path: "/api/upcoming"},
	{path: "/api/patterns"},
	{path: "/api/templates"},
}

type result struct {
	status   int
	duration time.Duration
	err      error
}

func newValidateCmd() *cobra.Command {
	var (
		url     string
		verbose bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Smoke-check the endpoints of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			out := cmd.OutOrStdout()
			baseURL := strings.TrimRight(url, "/")

			fmt.Fprintf(out, "Validating server at %s\n", baseURL)
			fmt.Fprintf(out, "Testing %d endpoints...\n\n", len(endpoints))

			var passed, failed int
			for _, ep := range endpoints {
				r := validateEndpoint(client, baseURL, ep)
				switch {
				case r.err != nil:
					failed++
					fmt.Fprintf(out, "FAIL GET %s\n     Error: %v\n", ep.path, r.err)
				case r.status != http.StatusOK:
					failed++
					fmt.Fprintf(out, "FAIL GET %s\n     Status: %d (expected 200)\n", ep.path, r.status)
				default:
					passed++
					if verbose {
						fmt.Fprintf(out, "PASS GET %s (%v)\n", ep.path, r.duration)
					}
				}
			}

			fmt.Fprintf(out, "\nResults: %d passed, %d failed\n", passed, failed)
			if failed > 0 {
				return codeError(exitGeneric, "%d endpoint(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Base URL of the server to validate")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print passing endpoints too")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	return cmd
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint) result {
	start := time.Now()

	resp, err := client.Get(baseURL + ep.path)
	if err != nil {
		return result{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{err: fmt.Errorf("failed to read body: %w", err)}
	}

	r := result{status: resp.StatusCode, duration: time.Since(start)}
	if r.status != http.StatusOK {
		return r
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		r.err = fmt.Errorf("wrong content type: got %q, expected application/json", ct)
		return r
	}
	var js any
	if err := json.Unmarshal(body, &js); err != nil {
		r.err = fmt.Errorf("invalid JSON: %w", err)
		return r
	}
	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}
	return r
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
