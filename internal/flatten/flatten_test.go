package flatten_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/rgpipe/internal/flatten"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

var day = time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)

func stim(onset float64, spikes ...float64) rgpipe.StimulationRecord {
	return rgpipe.StimulationRecord{
		FPS:           60,
		NFrames:       2,
		PixelSize:     7.5,
		StimHeight:    1,
		StimWidth:     2,
		StimulusOnset: onset,
		XBlockSize:    4,
		YBlockSize:    4,
		Movie:         rgpipe.Movie{Shape: []int{1, 2}, Data: []float64{0.5, 1}},
		Spikes:        spikes,
	}
}

func groupedStim(onset float64, groups ...rgpipe.SpikeGroupRecord) rgpipe.StimulationRecord {
	s := stim(onset)
	s.SpikeGroups = groups
	return s
}

func session(name string, stims ...rgpipe.StimulationRecord) rgpipe.SessionRecord {
	return rgpipe.SessionRecord{SubjectName: name, SampleNumber: 1, SessionDate: day, Stimulations: stims}
}

func TestFlat_SessionWithoutStimulations(t *testing.T) {
	batch, next, err := flatten.Flatten(rgpipe.VariantFlat, []rgpipe.SessionRecord{session("mouse-1")}, rgpipe.EmptyState())
	require.NoError(t, err)

	require.Len(t, batch.Subjects, 1)
	assert.Equal(t, rgpipe.Subject{ID: 1, Name: "mouse-1"}, batch.Subjects[0])

	require.Len(t, batch.Sessions, 1)
	assert.Nil(t, batch.Sessions[0].StimulationID)
	assert.Equal(t, int64(1), batch.Sessions[0].SubjectID)

	assert.Empty(t, batch.Stimulations)
	assert.Empty(t, batch.Spikes)
	assert.Equal(t, int64(2), next.NextSession)
	assert.Equal(t, int64(1), next.NextStimulation)
}

func TestFlat_TwoStimulationsOneSpikeEach(t *testing.T) {
	in := []rgpipe.SessionRecord{session("mouse-1", stim(1.0, 1.5), stim(2.0, 2.25))}

	batch, next, err := flatten.Flatten(rgpipe.VariantFlat, in, rgpipe.EmptyState())
	require.NoError(t, err)

	assert.Len(t, batch.Subjects, 1)
	require.Len(t, batch.Sessions, 2)
	require.Len(t, batch.Stimulations, 2)
	require.Len(t, batch.Spikes, 2)

	for i, s := range batch.Sessions {
		assert.Equal(t, int64(i+1), s.ID)
		assert.Equal(t, int64(1), s.SubjectID)
		assert.Equal(t, int64(1), s.SampleNumber)
		assert.Equal(t, day, s.SessionDate)
		require.NotNil(t, s.StimulationID)
		assert.Equal(t, batch.Stimulations[i].ID, *s.StimulationID)
		assert.Nil(t, batch.Stimulations[i].SessionID)
		assert.Empty(t, batch.Stimulations[i].MovieShape)
	}

	assert.Equal(t, 1.5, batch.Spikes[0].SpikeTime)
	assert.Equal(t, 0.5, batch.Spikes[0].SpikeMovieTime)
	assert.Equal(t, int64(1), *batch.Spikes[0].StimulationID)
	assert.Equal(t, int64(2), *batch.Spikes[1].StimulationID)
	assert.Nil(t, batch.Spikes[1].SpikeGroupID)
	assert.Nil(t, batch.Spikes[1].STA)

	assert.Equal(t, int64(3), next.NextSession)
	assert.Equal(t, int64(3), next.NextStimulation)
	assert.Equal(t, int64(3), next.NextSpike)
}

func TestExistingSubjectIsReused(t *testing.T) {
	state := rgpipe.State{
		Subjects:        []rgpipe.Subject{{ID: 1, Name: "mouse-0"}, {ID: 2, Name: "mouse-1"}},
		NextSession:     6,
		NextStimulation: 4,
		NextSpikeGroup:  9,
		NextSpike:       30,
	}

	for _, v := range []rgpipe.Variant{rgpipe.VariantFlat, rgpipe.VariantGrouped} {
		t.Run(v.String(), func(t *testing.T) {
			in := []rgpipe.SessionRecord{session("mouse-1", groupedStim(0, rgpipe.SpikeGroupRecord{{1}}))}
			in[0].Stimulations[0].Spikes = []float64{1}

			batch, _, err := flatten.Flatten(v, in, state)
			require.NoError(t, err)
			assert.Empty(t, batch.Subjects)
			require.Len(t, batch.Sessions, 1)
			assert.Equal(t, int64(2), batch.Sessions[0].SubjectID)
			assert.Equal(t, int64(6), batch.Sessions[0].ID)
			assert.Equal(t, int64(4), batch.Stimulations[0].ID)
			assert.Equal(t, int64(30), batch.Spikes[0].ID)
		})
	}
}

func TestSubjectsDistinctInFirstOccurrenceOrder(t *testing.T) {
	in := []rgpipe.SessionRecord{
		session("b"), session("a"), session("b"), session("c"), session("a"), session("A"),
	}
	state := rgpipe.State{Subjects: []rgpipe.Subject{{ID: 3, Name: "c"}}}

	batch, next, err := flatten.Flatten(rgpipe.VariantFlat, in, state)
	require.NoError(t, err)

	assert.Equal(t, []rgpipe.Subject{{ID: 4, Name: "b"}, {ID: 5, Name: "a"}, {ID: 6, Name: "A"}}, batch.Subjects)
	assert.Len(t, next.Subjects, 4)

	wantSubject := []int64{4, 5, 4, 3, 5, 6}
	for i, s := range batch.Sessions {
		assert.Equal(t, wantSubject[i], s.SubjectID, "session %d", i)
	}
}

func TestGrouped_Linkage(t *testing.T) {
	in := []rgpipe.SessionRecord{
		session("m",
			groupedStim(10, rgpipe.SpikeGroupRecord{{11, 0.1}, {12.5}}, rgpipe.SpikeGroupRecord{{13}}),
			groupedStim(20),
		),
		session("n"),
		session("m", groupedStim(30, rgpipe.SpikeGroupRecord{{31}})),
	}

	batch, next, err := flatten.Flatten(rgpipe.VariantGrouped, in, rgpipe.EmptyState())
	require.NoError(t, err)

	require.Len(t, batch.Sessions, 3)
	require.Len(t, batch.Stimulations, 3)
	require.Len(t, batch.SpikeGroups, 3)
	require.Len(t, batch.Spikes, 4)

	for _, s := range batch.Sessions {
		assert.Nil(t, s.StimulationID)
	}
	assert.Equal(t, []int64{1, 1, 3}, []int64{*batch.Stimulations[0].SessionID, *batch.Stimulations[1].SessionID, *batch.Stimulations[2].SessionID})
	assert.Equal(t, "(1, 2)", batch.Stimulations[0].MovieShape)
	assert.Equal(t, []rgpipe.SpikeGroup{{ID: 1, StimulationID: 1}, {ID: 2, StimulationID: 1}, {ID: 3, StimulationID: 3}}, batch.SpikeGroups)

	wantGroup := []int64{1, 1, 2, 3}
	wantRel := []float64{1, 2.5, 3, 1}
	for i, sp := range batch.Spikes {
		assert.Equal(t, int64(i+1), sp.ID)
		require.NotNil(t, sp.SpikeGroupID)
		assert.Equal(t, wantGroup[i], *sp.SpikeGroupID)
		assert.Nil(t, sp.StimulationID)
		assert.InDelta(t, wantRel[i], sp.SpikeMovieTime, 1e-9)
	}

	assert.Equal(t, rgpipe.State{
		Subjects:        []rgpipe.Subject{{ID: 1, Name: "m"}, {ID: 2, Name: "n"}},
		NextSession:     4,
		NextStimulation: 4,
		NextSpikeGroup:  4,
		NextSpike:       5,
	}, next)
}

func TestForeignKeysReferenceEarlierRows(t *testing.T) {
	in := []rgpipe.SessionRecord{
		session("x", groupedStim(0, rgpipe.SpikeGroupRecord{{1}, {2}}), groupedStim(0)),
		session("y", groupedStim(0, rgpipe.SpikeGroupRecord{{3}}, rgpipe.SpikeGroupRecord{{4}})),
	}
	in[0].Stimulations[0].Spikes = []float64{1, 2}
	in[1].Stimulations[0].Spikes = []float64{3}

	state := rgpipe.State{Subjects: []rgpipe.Subject{{ID: 7, Name: "x"}}, NextSession: 3, NextStimulation: 5, NextSpikeGroup: 2, NextSpike: 11}

	for _, v := range []rgpipe.Variant{rgpipe.VariantFlat, rgpipe.VariantGrouped} {
		t.Run(v.String(), func(t *testing.T) {
			batch, _, err := flatten.Flatten(v, in, state)
			require.NoError(t, err)

			subjects := map[int64]bool{7: true}
			for _, s := range batch.Subjects {
				subjects[s.ID] = true
			}
			stims := map[int64]bool{}
			for _, s := range batch.Stimulations {
				stims[s.ID] = true
			}
			groups := map[int64]bool{}
			for _, g := range batch.SpikeGroups {
				assert.True(t, stims[g.StimulationID])
				groups[g.ID] = true
			}
			sessions := map[int64]bool{}
			for _, s := range batch.Sessions {
				assert.True(t, subjects[s.SubjectID])
				if s.StimulationID != nil {
					assert.True(t, stims[*s.StimulationID])
				}
				sessions[s.ID] = true
			}
			for _, s := range batch.Stimulations {
				if s.SessionID != nil {
					assert.True(t, sessions[*s.SessionID])
				}
			}
			for _, sp := range batch.Spikes {
				switch v {
				case rgpipe.VariantFlat:
					assert.True(t, stims[*sp.StimulationID])
				case rgpipe.VariantGrouped:
					assert.True(t, groups[*sp.SpikeGroupID])
				}
			}
		})
	}
}

func TestIdsAreContiguousFromState(t *testing.T) {
	in := []rgpipe.SessionRecord{
		session("x", stim(0, 1, 2, 3), stim(0)),
		session("y"),
		session("z", stim(0, 4)),
	}
	state := rgpipe.State{NextSession: 10, NextStimulation: 20, NextSpike: 30}

	batch, next, err := flatten.Flatten(rgpipe.VariantFlat, in, state)
	require.NoError(t, err)

	for i, s := range batch.Sessions {
		assert.Equal(t, int64(10+i), s.ID)
	}
	for i, s := range batch.Stimulations {
		assert.Equal(t, int64(20+i), s.ID)
	}
	for i, s := range batch.Spikes {
		assert.Equal(t, int64(30+i), s.ID)
	}
	assert.Equal(t, int64(10+len(batch.Sessions)), next.NextSession)
	assert.Equal(t, int64(20+len(batch.Stimulations)), next.NextStimulation)
	assert.Equal(t, int64(30+len(batch.Spikes)), next.NextSpike)
}

func TestReloadDuplicatesEverythingButSubjects(t *testing.T) {
	in := []rgpipe.SessionRecord{session("x", stim(0, 1)), session("y", stim(0, 2))}

	first, state, err := flatten.Flatten(rgpipe.VariantFlat, in, rgpipe.EmptyState())
	require.NoError(t, err)
	second, _, err := flatten.Flatten(rgpipe.VariantFlat, in, state)
	require.NoError(t, err)

	assert.Len(t, second.Subjects, 0)
	assert.Len(t, second.Sessions, len(first.Sessions))
	assert.Len(t, second.Stimulations, len(first.Stimulations))
	assert.Len(t, second.Spikes, len(first.Spikes))
	assert.Equal(t, int64(3), second.Sessions[0].ID)
}

func TestFlattenDoesNotMutateState(t *testing.T) {
	state := rgpipe.State{Subjects: []rgpipe.Subject{{ID: 1, Name: "x"}}, NextSession: 2, NextStimulation: 2, NextSpike: 2}
	snapshot := rgpipe.State{Subjects: append([]rgpipe.Subject(nil), state.Subjects...), NextSession: 2, NextStimulation: 2, NextSpike: 2}

	_, _, err := flatten.Flatten(rgpipe.VariantFlat, []rgpipe.SessionRecord{session("y", stim(0, 1))}, state)
	require.NoError(t, err)
	assert.Equal(t, snapshot, state)
}

func TestZeroStateCountersStartAtOne(t *testing.T) {
	batch, _, err := flatten.Flatten(rgpipe.VariantGrouped, []rgpipe.SessionRecord{
		session("x", groupedStim(0, rgpipe.SpikeGroupRecord{{1}})),
	}, rgpipe.State{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), batch.Subjects[0].ID)
	assert.Equal(t, int64(1), batch.Sessions[0].ID)
	assert.Equal(t, int64(1), batch.Stimulations[0].ID)
	assert.Equal(t, int64(1), batch.SpikeGroups[0].ID)
	assert.Equal(t, int64(1), batch.Spikes[0].ID)
}

// Ids continue from the largest existing id, so a table with gaps left by
// deletions does not hand out a colliding id.
func TestIdsContinueAfterGaps(t *testing.T) {
	state := rgpipe.State{Subjects: []rgpipe.Subject{{ID: 2, Name: "a"}, {ID: 9, Name: "b"}}}

	batch, _, err := flatten.Flatten(rgpipe.VariantFlat, []rgpipe.SessionRecord{session("c")}, state)
	require.NoError(t, err)
	assert.Equal(t, int64(10), batch.Subjects[0].ID)
}

func TestErrors(t *testing.T) {
	t.Run("unknown variant", func(t *testing.T) {
		_, _, err := flatten.Flatten(rgpipe.Variant(9), nil, rgpipe.EmptyState())
		require.ErrorIs(t, err, rgpipe.ErrInvalidConfig)
	})

	t.Run("empty spike tuple", func(t *testing.T) {
		in := []rgpipe.SessionRecord{session("x", groupedStim(0, rgpipe.SpikeGroupRecord{{1}, {}}))}
		state := rgpipe.EmptyState()
		batch, got, err := flatten.Flatten(rgpipe.VariantGrouped, in, state)
		require.ErrorIs(t, err, rgpipe.ErrMalformedRecord)
		assert.Contains(t, err.Error(), "spike group 0")
		assert.Nil(t, batch)
		assert.Equal(t, state, got)
	})

	t.Run("movie shape mismatch", func(t *testing.T) {
		s := stim(0)
		s.Movie = rgpipe.Movie{Shape: []int{2, 2}, Data: []float64{1}}
		_, _, err := flatten.Flatten(rgpipe.VariantFlat, []rgpipe.SessionRecord{session("x", s)}, rgpipe.EmptyState())
		require.ErrorIs(t, err, rgpipe.ErrMalformedRecord)
		assert.Contains(t, err.Error(), "session 0 (x) stimulation 0")
	})
}
