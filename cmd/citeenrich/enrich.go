package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-enrichment-service/internal/app"
	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/enrichment"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
)

// resultFile is what enrich writes and stats reads.
type resultFile struct {
	BatchID     string                   `json:"batch_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Papers      []domain.PaperRef        `json:"papers"`
	Outcomes    []enrichment.Outcome     `json:"outcomes"`
	Stats       enrichment.StatsSnapshot `json:"stats"`
	Cancelled   bool                     `json:"cancelled,omitempty"`
	Hint        string                   `json:"hint,omitempty"`
}

func (c *cli) newEnrichCmd() *cobra.Command {
	var (
		input       string
		output      string
		concurrency int
		retries     int
		noFallback  bool
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich a JSON list of papers with citation metrics",
		Long: `Enrich reads papers from --input, either a JSON array of
{"id", "title"} objects or an object with a "papers" array, and writes the
enriched papers with per-paper outcomes to --output (stdout by default).

Interrupting the command stops dispatching new papers; papers already
processed are still written.`,
		Example: `  citeenrich enrich --input papers.json --output enriched.json
  citeenrich enrich --input papers.json --concurrency 2 --retries 0 --no-fallback`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			papers, err := readPapers(input)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pipeline, err := app.Build(ctx, c.cfg, nil, c.logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := pipeline.Close(); closeErr != nil {
					c.logger.Warn().Err(closeErr).Msg("failed to release pipeline resources")
				}
			}()

			opts := pipeline.Options()
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}
			if cmd.Flags().Changed("retries") {
				opts.RetryCount = retries
			}
			if noFallback {
				opts.UseFallback = false
			}
			if noCache {
				opts.UseCache = false
			}

			res, err := pipeline.Orchestrator.EnrichBatch(ctx, papers, opts)
			if err != nil {
				return err
			}

			if err := writeResult(output, c.out, res); err != nil {
				return err
			}
			printSummary(c.errOut, res)

			if res.Cancelled {
				return errors.New("enrichment interrupted before every paper was processed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file with papers to enrich (- for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write results to this file instead of stdout")
	cmd.Flags().IntVar(&concurrency, "concurrency", enrichment.DefaultOptions().Concurrency, "number of papers looked up in parallel")
	cmd.Flags().IntVar(&retries, "retries", enrichment.DefaultOptions().RetryCount, "primary provider retries after the first attempt")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "skip the OpenAlex title lookup")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "neither read nor write the citation cache")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// readPapers accepts either a bare JSON array or {"papers": [...]}.
func readPapers(path string) ([]domain.PaperRef, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("read input: %s is empty", path)
	}

	var papers []domain.PaperRef
	if trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &papers)
	} else {
		var wrapped struct {
			Papers []domain.PaperRef `json:"papers"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		papers = wrapped.Papers
	}
	if err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return papers, nil
}

func writeResult(path string, stdout io.Writer, res *enrichment.BatchResult) error {
	data, err := json.MarshalIndent(resultFile{
		BatchID:     res.ID.String(),
		GeneratedAt: time.Now().UTC(),
		Papers:      res.Papers,
		Outcomes:    res.Outcomes,
		Stats:       res.Stats,
		Cancelled:   res.Cancelled,
		Hint:        res.Hint(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, res *enrichment.BatchResult) {
	s := res.Stats
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Enriched %d of %d papers in %s", res.Enriched(), len(res.Papers), res.Duration.Round(time.Millisecond))))
	fmt.Fprintf(w, "  cache hits      %d\n", s.CacheHits)
	fmt.Fprintf(w, "  primary         %d ok, %d failed\n", s.PrimarySuccess, s.PrimaryFail)
	fmt.Fprintf(w, "  fallback        %d\n", s.FallbackUsed)
	if s.RateLimited > 0 {
		fmt.Fprintf(w, "  rate limited    %d\n", s.RateLimited)
	}

	if hint := res.Hint(); hint != "" {
		fmt.Fprintln(w, warnStyle.Render(hint))
		return
	}
	fmt.Fprintln(w, okStyle.Render("done"))
}
