package cli

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/rgpipe/internal/services"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

func TestLoadTable(t *testing.T) {
	s := &services.LoadSummary{
		Target:  "alice_retinal",
		Variant: rgpipe.VariantFlat,
		Sources: []services.SourceResult{
			{Path: "a.json", Sessions: 2, Elapsed: 1500 * time.Microsecond,
				Counts: map[rgpipe.Table]int{rgpipe.TableSubject: 2, rgpipe.TableSession: 2, rgpipe.TableSpike: 3}},
			{Path: "b.json", Sessions: 1,
				Counts: map[rgpipe.Table]int{rgpipe.TableSession: 1, rgpipe.TableStimulation: 1}},
		},
	}

	tbl := loadTable(s)
	assert.Equal(t, "Loaded into alice_retinal (flat)", tbl.Title)
	assert.Equal(t, []string{"source", "sessions", "subject", "stimulation", "session", "spike", "elapsed"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"a.json", "2", "2", "0", "2", "3", "2ms"}, tbl.Rows[0])
	assert.Equal(t, []string{"total", "3", "2", "1", "3", "3", ""}, tbl.Footer)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, tbl.Numeric)
}

func TestLoadTable_DryRunSingleSource(t *testing.T) {
	s := &services.LoadSummary{
		Target:  "dry-run",
		Variant: rgpipe.VariantGrouped,
		DryRun:  true,
		Sources: []services.SourceResult{{Path: "a.json", Counts: map[rgpipe.Table]int{}}},
	}
	tbl := loadTable(s)
	assert.Equal(t, "Dry run (grouped): nothing written", tbl.Title)
	assert.Nil(t, tbl.Footer)
}

func TestStatusTables(t *testing.T) {
	id := uuid.MustParse("0b5e3c1a-0000-4000-8000-000000000001")
	st := &services.Status{
		Target:  "retinal.db",
		Variant: rgpipe.VariantGrouped,
		Counts:  map[rgpipe.Table]int64{rgpipe.TableSubject: 4, rgpipe.TableSpike: 10},
		Runs: []rgpipe.IngestRun{{
			RunID:        id,
			SourcePath:   "data/a.json",
			SourceSHA256: "0123456789abcdef0123",
			Variant:      rgpipe.VariantGrouped,
			Counts:       map[rgpipe.Table]int{rgpipe.TableSubject: 4, rgpipe.TableSpike: 10},
			LoadedAt:     time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		}},
	}

	tables := statusTables(st)
	require.Len(t, tables, 2)
	assert.Equal(t, "retinal.db (grouped)", tables[0].Title)
	assert.Len(t, tables[0].Rows, 5)
	assert.Equal(t, []string{"subject", "4"}, tables[0].Rows[0])
	assert.Equal(t, []string{"session", "0"}, tables[0].Rows[1])

	run := tables[1].Rows[0]
	assert.Equal(t, "0b5e3c1a", run[1])
	assert.Equal(t, "14", run[3])
	assert.Equal(t, "0123456789ab", run[4])
	assert.Equal(t, "data/a.json", run[5])

	st.Runs = nil
	assert.Len(t, statusTables(st), 1)
}
