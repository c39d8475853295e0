package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"horse.fit/nycpedia/internal/cli"
)

type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

type healthResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Upstream ping timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	svc, err := loadServices(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results := runHealthChecks(ctx, upstreamChecks(svc))
	if err := writeHealthResults(os.Stdout, outputFormat, results); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}

	for _, result := range results {
		if !result.OK {
			svc.logger.Error().Str("upstream", result.Name).Str("error", result.Error).Msg("health check failed")
			return 1
		}
	}
	svc.logger.Info().Dur("timeout", *timeout).Msg("upstream health check passed")
	return 0
}

func upstreamChecks(svc *services) []healthCheck {
	return []healthCheck{
		{name: "wikipedia:en", ping: func(ctx context.Context) error { return svc.wikipedia.Ping(ctx, "en") }},
		{name: "wikipedia:es", ping: func(ctx context.Context) error { return svc.wikipedia.Ping(ctx, "es") }},
		{name: "wikidata", ping: svc.wikidata.Ping},
	}
}

// runHealthChecks pings every upstream concurrently. Results keep the
// order of checks.
func runHealthChecks(ctx context.Context, checks []healthCheck) []healthResult {
	results := make([]healthResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			started := time.Now()
			err := check.ping(ctx)
			results[i] = healthResult{Name: check.name, OK: err == nil, Latency: time.Since(started)}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func writeHealthResults(w io.Writer, format string, results []healthResult) error {
	if format == outputFormatJSON {
		return printJSON(w, results)
	}

	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if !result.OK {
			status = "fail"
		}
		rows = append(rows, []string{
			result.Name,
			status,
			result.Latency.Round(time.Millisecond).String(),
			truncateForTable(result.Error, 80),
		})
	}
	return writeTable(w, []string{"UPSTREAM", "STATUS", "LATENCY", "ERROR"}, rows)
}
