package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/enrichment"
)

// paperRow is one line of the stats report.
type paperRow struct {
	paper      domain.PaperRef
	resolution domain.Resolution
	velocity   float64
	hasYear    bool
}

func (c *cli) newStatsCmd() *cobra.Command {
	var (
		input string
		top   int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize an enrichment run",
		Long: `Stats reads a file written by "citeenrich enrich" and prints the run
counters followed by the papers ranked by citation velocity, the number of
citations per year since publication.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read results: %w", err)
			}
			var rf resultFile
			if err := json.Unmarshal(data, &rf); err != nil {
				return fmt.Errorf("parse results: %w", err)
			}
			renderStats(c.out, rf, time.Now(), top)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "results file written by enrich")
	cmd.Flags().IntVar(&top, "top", 20, "number of papers to list (0 for all)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func renderStats(w io.Writer, rf resultFile, now time.Time, top int) {
	s := rf.Stats
	fmt.Fprintln(w, titleStyle.Render("Batch "+rf.BatchID))
	fmt.Fprintf(w, "  papers            %d\n", len(rf.Papers))
	fmt.Fprintf(w, "  cache hits        %d\n", s.CacheHits)
	fmt.Fprintf(w, "  primary success   %d of %d (%.0f%%)\n", s.PrimarySuccess, s.TotalAttempts, 100*s.PrimarySuccessRate())
	fmt.Fprintf(w, "  fallback used     %d\n", s.FallbackUsed)
	fmt.Fprintf(w, "  rate limited      %d\n", s.RateLimited)
	if rf.Hint != "" {
		fmt.Fprintln(w, warnStyle.Render(rf.Hint))
	}

	rows := rankPapers(rf, now)
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CITATIONS", "INFLUENTIAL", "YEAR", "PER YEAR", "RESOLUTION")
	for _, r := range rows {
		year, velocity := "-", "-"
		if r.hasYear {
			year = strconv.Itoa(*r.paper.Year)
			velocity = strconv.FormatFloat(r.velocity, 'f', 1, 64)
		}
		t.Row(
			r.paper.ID,
			strconv.Itoa(r.paper.CitationCount),
			strconv.Itoa(r.paper.InfluentialCitations),
			year,
			velocity,
			string(r.resolution),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// rankPapers orders papers by citation velocity, highest first. Papers
// without a publication year sort last by raw citation count.
func rankPapers(rf resultFile, now time.Time) []paperRow {
	rows := make([]paperRow, len(rf.Papers))
	for i, p := range rf.Papers {
		rec := domain.NewCitationRecord(p.CitationCount, p.InfluentialCitations, p.ReferenceCount, p.Year, p.Venue, p.Fields, p.CitationSource)
		v, ok := enrichment.CitationVelocity(rec, now)
		rows[i] = paperRow{paper: p, velocity: v, hasYear: ok}
		if i < len(rf.Outcomes) {
			rows[i].resolution = rf.Outcomes[i].Resolution
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.hasYear != b.hasYear {
			return a.hasYear
		}
		if a.hasYear && a.velocity != b.velocity {
			return a.velocity > b.velocity
		}
		return a.paper.CitationCount > b.paper.CitationCount
	})
	return rows
}
