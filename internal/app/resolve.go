package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"horse.fit/nycpedia/internal/cli"
	"horse.fit/nycpedia/internal/render"
	"horse.fit/nycpedia/internal/resolver"
)

type resolveOutput struct {
	Match   *resolver.Match `json:"match"`
	Article *render.Article `json:"article,omitempty"`
}

func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	query := fs.String("query", "", "Text to resolve to a New York City article (positional args also work)")
	withArticle := fs.Bool("render", false, "Also fetch and render the full article")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	q := strings.TrimSpace(*query)
	if q == "" {
		q = strings.TrimSpace(strings.Join(fs.Args(), " "))
	} else if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "use either --query or positional arguments, not both")
		return 2
	}
	if utf8.RuneCountInString(q) < resolver.MinQueryRunes {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", resolver.ErrEmptyQuery)
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
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

	out, err := resolveQuery(ctx, svc, q, *withArticle)
	if err != nil {
		svc.logger.Error().Err(err).Str("query", q).Msg("resolve failed")
		fmt.Fprintf(os.Stderr, "Resolve failed: %v\n", err)
		return 1
	}

	if err := writeResolveOutput(os.Stdout, outputFormat, out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	if !out.Match.Found() {
		return 1
	}
	return 0
}

func resolveQuery(ctx context.Context, svc *services, query string, withArticle bool) (*resolveOutput, error) {
	match, err := svc.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	out := &resolveOutput{Match: match}
	if withArticle && match.Found() {
		article, err := svc.renderer.Render(ctx, match.Language, match.Summary)
		if err != nil {
			return nil, fmt.Errorf("render article: %w", err)
		}
		out.Article = article
	}
	return out, nil
}

func writeResolveOutput(w io.Writer, format string, out *resolveOutput) error {
	if format == outputFormatJSON {
		return printJSON(w, out)
	}

	match := out.Match
	if !match.Found() {
		if _, err := fmt.Fprintf(w, "No New York City article matched %q (best score %d).\n", match.Query, match.Score); err != nil {
			return err
		}
		if len(match.Suggestions) > 0 {
			_, err := fmt.Fprintf(w, "Try: %s\n", strings.Join(match.Suggestions, ", "))
			return err
		}
		return nil
	}

	summary := match.Summary
	rows := [][]string{
		{"title", summary.Title},
		{"language", match.Language},
		{"score", strconv.Itoa(match.Score)},
		{"phase", match.Phase},
		{"origin", string(match.Origin)},
		{"description", oneLine(summary.Description)},
		{"page_url", summary.PageURL},
		{"wikibase_item", summary.WikibaseItem},
	}
	if article := out.Article; article != nil {
		rows = append(rows, []string{"image_url", article.ImageURL})
		if attribution := article.Attribution; attribution != nil {
			rows = append(rows, []string{"image_credit", strings.TrimSpace(attribution.Artist + " " + attribution.License)})
		}
		rows = append(rows, []string{"text", truncateForTable(oneLine(article.Text), 280)})
	}
	return writeTable(w, []string{"FIELD", "VALUE"}, rows)
}
