package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vvka-141/rgpipe/internal/services"
	"github.com/vvka-141/rgpipe/internal/tui"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// loadTable renders one row per source with the rows appended per table.
func loadTable(s *services.LoadSummary) *tui.Table {
	tables := s.Variant.Tables()

	title := fmt.Sprintf("Loaded into %s (%s)", s.Target, s.Variant)
	if s.DryRun {
		title = fmt.Sprintf("Dry run (%s): nothing written", s.Variant)
	}

	t := &tui.Table{Title: title, Headers: []string{"source", "sessions"}}
	for _, tbl := range tables {
		t.Headers = append(t.Headers, string(tbl))
	}
	t.Headers = append(t.Headers, "elapsed")
	for i := 1; i <= len(tables)+1; i++ {
		t.Numeric = append(t.Numeric, i)
	}

	sessions := 0
	for _, src := range s.Sources {
		row := []string{src.Path, strconv.Itoa(src.Sessions)}
		for _, tbl := range tables {
			row = append(row, strconv.Itoa(src.Counts[tbl]))
		}
		row = append(row, src.Elapsed.Round(time.Millisecond).String())
		t.Rows = append(t.Rows, row)
		sessions += src.Sessions
	}

	if len(s.Sources) > 1 {
		totals := s.Totals()
		footer := []string{"total", strconv.Itoa(sessions)}
		for _, tbl := range tables {
			footer = append(footer, strconv.Itoa(totals[tbl]))
		}
		t.Footer = append(footer, "")
	}
	return t
}

// statusTables renders the row counts and, if any, the recent journal entries.
func statusTables(st *services.Status) []*tui.Table {
	counts := &tui.Table{
		Title:   fmt.Sprintf("%s (%s)", st.Target, st.Variant),
		Headers: []string{"table", "rows"},
		Numeric: []int{1},
	}
	for _, tbl := range st.Variant.Tables() {
		counts.Rows = append(counts.Rows, []string{string(tbl), strconv.FormatInt(st.Counts[tbl], 10)})
	}

	if len(st.Runs) == 0 {
		return []*tui.Table{counts}
	}

	runs := &tui.Table{
		Title:   "Recent loads",
		Headers: []string{"loaded_at", "run_id", "variant", "rows", "sha256", "source"},
		Numeric: []int{3},
	}
	for _, r := range st.Runs {
		runs.Rows = append(runs.Rows, []string{
			r.LoadedAt.Local().Format(time.DateTime),
			r.RunID.String()[:8],
			r.Variant.String(),
			strconv.Itoa(totalRows(r)),
			shortHash(r.SourceSHA256),
			r.SourcePath,
		})
	}
	return []*tui.Table{counts, runs}
}

func totalRows(r rgpipe.IngestRun) int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
