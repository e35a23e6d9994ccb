// Package storetest runs the same behavioural checks against every
// rgpipe.Target implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/rgpipe/internal/flatten"
	"github.com/vvka-141/rgpipe/internal/logging"
	"github.com/vvka-141/rgpipe/internal/store"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// Opener returns a target with no tables. It is called once per subtest.
type Opener func(t *testing.T) rgpipe.Target

// Sessions returns a small input with two subjects, one of them recorded
// twice, and a session without stimulations.
func Sessions() []rgpipe.SessionRecord {
	day := time.Date(2019, 11, 20, 0, 0, 0, 0, time.UTC)
	stim := func(onset float64, spikes ...float64) rgpipe.StimulationRecord {
		groups := make([]rgpipe.SpikeGroupRecord, 0, len(spikes))
		for _, s := range spikes {
			groups = append(groups, rgpipe.SpikeGroupRecord{{s}})
		}
		return rgpipe.StimulationRecord{
			FPS: 60, NFrames: 2, PixelSize: 8, StimHeight: 1, StimWidth: 2,
			StimulusOnset: onset, XBlockSize: 4, YBlockSize: 4,
			Movie:       rgpipe.Movie{Shape: []int{2, 1}, Data: []float64{0.25, 0.75}},
			Spikes:      spikes,
			SpikeGroups: groups,
		}
	}
	return []rgpipe.SessionRecord{
		{SubjectName: "M1", SampleNumber: 1, SessionDate: day, Stimulations: []rgpipe.StimulationRecord{stim(1, 1.5, 2.5), stim(3, 3.5)}},
		{SubjectName: "M2", SampleNumber: 2, SessionDate: day.AddDate(0, 0, 1)},
		{SubjectName: "M1", SampleNumber: 3, SessionDate: day.AddDate(0, 0, 2), Stimulations: []rgpipe.StimulationRecord{stim(0, 0.5)}},
	}
}

// Load flattens sessions against the current state of target and appends them.
func Load(t *testing.T, target rgpipe.Target, v rgpipe.Variant, sessions []rgpipe.SessionRecord) *rgpipe.Batch {
	t.Helper()
	ctx := context.Background()

	state, err := target.State(ctx, v)
	require.NoError(t, err)
	batch, _, err := flatten.Flatten(v, sessions, state)
	require.NoError(t, err)
	_, err = store.Insert(ctx, target, v, batch, logging.NewNullLogger())
	require.NoError(t, err)
	return batch
}

// Run executes the conformance checks for both variants.
func Run(t *testing.T, open Opener) {
	for _, v := range []rgpipe.Variant{rgpipe.VariantFlat, rgpipe.VariantGrouped} {
		t.Run(v.String(), func(t *testing.T) {
			t.Run("EmptyState", func(t *testing.T) { testEmptyState(t, open(t), v) })
			t.Run("LoadTwice", func(t *testing.T) { testLoadTwice(t, open(t), v) })
			t.Run("GapsContinueFromMax", func(t *testing.T) { testGaps(t, open(t), v) })
			t.Run("FailedTableKeepsEarlierTables", func(t *testing.T) { testPartialFailure(t, open(t), v) })
			t.Run("Journal", func(t *testing.T) { testJournal(t, open(t), v) })
			t.Run("DropAndRebuild", func(t *testing.T) { testDrop(t, open(t), v) })
		})
	}
}

func build(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	t.Helper()
	require.NoError(t, target.CreateTables(context.Background(), v))
	require.NoError(t, target.CreateTables(context.Background(), v), "CreateTables must be idempotent")
}

func testEmptyState(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	build(t, target, v)

	state, err := target.State(context.Background(), v)
	require.NoError(t, err)
	assert.Empty(t, state.Subjects)
	want := rgpipe.EmptyState()
	assert.Equal(t, want.NextSession, state.NextSession)
	assert.Equal(t, want.NextStimulation, state.NextStimulation)
	assert.Equal(t, want.NextSpikeGroup, state.NextSpikeGroup)
	assert.Equal(t, want.NextSpike, state.NextSpike)

	counts, err := target.Counts(context.Background(), v)
	require.NoError(t, err)
	for _, table := range v.Tables() {
		assert.Zero(t, counts[table], table)
	}
}

func testLoadTwice(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	ctx := context.Background()
	build(t, target, v)

	first := Load(t, target, v, Sessions())
	second := Load(t, target, v, Sessions())
	assert.Empty(t, second.Subjects, "known subjects are not inserted again")

	counts, err := target.Counts(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[rgpipe.TableSubject])
	for _, table := range v.Tables() {
		if table == rgpipe.TableSubject {
			continue
		}
		assert.Equal(t, int64(2*first.Len(table)), counts[table], table)
	}

	state, err := target.State(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, []rgpipe.Subject{{ID: 1, Name: "M1"}, {ID: 2, Name: "M2"}}, state.Subjects)
	assert.Equal(t, counts[rgpipe.TableSession]+1, state.NextSession)
	assert.Equal(t, counts[rgpipe.TableStimulation]+1, state.NextStimulation)
	assert.Equal(t, counts[rgpipe.TableSpike]+1, state.NextSpike)
	if v == rgpipe.VariantGrouped {
		assert.Equal(t, counts[rgpipe.TableSpikeGroup]+1, state.NextSpikeGroup)
	}
}

func testGaps(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	ctx := context.Background()
	build(t, target, v)

	five := int64(5)
	b := &rgpipe.Batch{
		Subjects:     []rgpipe.Subject{{ID: 4, Name: "M9"}},
		Stimulations: []rgpipe.Stimulation{{ID: 1, Movie: []byte{}, MovieShape: "(0,)"}, {ID: 5, Movie: []byte{}, MovieShape: "(0,)"}},
	}
	if v == rgpipe.VariantFlat {
		b.Sessions = []rgpipe.Session{{ID: 7, SubjectID: 4, SessionDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), StimulationID: &five}}
	} else {
		b.Sessions = []rgpipe.Session{{ID: 7, SubjectID: 4, SessionDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}}
		seven := int64(7)
		b.Stimulations[0].SessionID = &seven
		b.Stimulations[1].SessionID = &seven
	}
	_, err := store.Insert(ctx, target, v, b, logging.NewNullLogger())
	require.NoError(t, err)

	state, err := target.State(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(8), state.NextSession)
	assert.Equal(t, int64(6), state.NextStimulation)
	assert.Equal(t, int64(5), state.NextSubject())

	batch := Load(t, target, v, Sessions())
	assert.Equal(t, int64(5), batch.Subjects[0].ID)
	assert.Equal(t, int64(8), batch.Sessions[0].ID)
	assert.Equal(t, int64(6), batch.Stimulations[0].ID)
}

func testPartialFailure(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	ctx := context.Background()
	build(t, target, v)

	one, missing := int64(1), int64(99)
	b := &rgpipe.Batch{
		Subjects:     []rgpipe.Subject{{ID: 1, Name: "M1"}},
		Sessions:     []rgpipe.Session{{ID: 1, SubjectID: 1, SessionDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}},
		Stimulations: []rgpipe.Stimulation{{ID: 1, Movie: []byte{}, MovieShape: "(0,)", SessionID: &one}},
		Spikes:       []rgpipe.Spike{{ID: 1, StimulationID: &missing, SpikeGroupID: &missing}},
	}

	_, err := store.Insert(ctx, target, v, b, logging.NewNullLogger())
	require.ErrorIs(t, err, rgpipe.ErrInsertFailed)
	assert.Contains(t, err.Error(), "table spike")

	counts, err := target.Counts(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[rgpipe.TableSubject])
	assert.Equal(t, int64(1), counts[rgpipe.TableSession])
	assert.Equal(t, int64(1), counts[rgpipe.TableStimulation])
	assert.Zero(t, counts[rgpipe.TableSpike])
}

func testJournal(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	ctx := context.Background()
	build(t, target, v)

	base := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	older := rgpipe.IngestRun{
		RunID: uuid.New(), SourcePath: "/data/a.json", SourceSHA256: "aa", Variant: v,
		Counts: map[rgpipe.Table]int{rgpipe.TableSubject: 1, rgpipe.TableSpike: 3}, LoadedAt: base,
	}
	newer := older
	newer.RunID = uuid.New()
	newer.SourcePath = "/data/b.json"
	newer.LoadedAt = base.Add(time.Minute)

	require.NoError(t, target.RecordRun(ctx, older))
	require.NoError(t, target.RecordRun(ctx, newer))

	runs, err := target.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, newer.RunID, got.RunID)
	assert.Equal(t, "/data/b.json", got.SourcePath)
	assert.Equal(t, v, got.Variant)
	assert.Equal(t, 3, got.Counts[rgpipe.TableSpike])
	assert.Equal(t, 0, got.Counts[rgpipe.TableSession])
	assert.True(t, newer.LoadedAt.Equal(got.LoadedAt), "loaded_at %s != %s", got.LoadedAt, newer.LoadedAt)

	runs, err = target.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, older.RunID, runs[1].RunID)
}

func testDrop(t *testing.T, target rgpipe.Target, v rgpipe.Variant) {
	ctx := context.Background()
	build(t, target, v)
	Load(t, target, v, Sessions())

	require.NoError(t, target.DropTables(ctx, v))
	require.NoError(t, target.DropTables(ctx, v), "DropTables must tolerate missing tables")
	build(t, target, v)

	state, err := target.State(ctx, v)
	require.NoError(t, err)
	assert.Empty(t, state.Subjects)
	assert.Equal(t, int64(1), state.NextSession)
}
