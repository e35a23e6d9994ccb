package flatten

import (
	"fmt"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// accumulator carries the id counters and subject lookup through one Flatten call.
type accumulator struct {
	subjects   []rgpipe.Subject
	subjectIDs map[string]int64

	nextSubject     int64
	nextSession     int64
	nextStimulation int64
	nextSpikeGroup  int64
	nextSpike       int64

	batch rgpipe.Batch
}

func newAccumulator(state rgpipe.State) *accumulator {
	acc := &accumulator{
		subjects:        make([]rgpipe.Subject, 0, len(state.Subjects)),
		subjectIDs:      make(map[string]int64, len(state.Subjects)),
		nextSubject:     state.NextSubject(),
		nextSession:     atLeastOne(state.NextSession),
		nextStimulation: atLeastOne(state.NextStimulation),
		nextSpikeGroup:  atLeastOne(state.NextSpikeGroup),
		nextSpike:       atLeastOne(state.NextSpike),
	}
	for _, s := range state.Subjects {
		acc.subjects = append(acc.subjects, s)
		if _, ok := acc.subjectIDs[s.Name]; !ok {
			acc.subjectIDs[s.Name] = s.ID
		}
	}
	return acc
}

func atLeastOne(n int64) int64 {
	if n < 1 {
		return 1
	}
	return n
}

// Flatten converts sessions into row batches for variant v, assigning ids
// that continue from state. The input state is not modified; the returned
// State reflects every row in the returned Batch.
func Flatten(v rgpipe.Variant, sessions []rgpipe.SessionRecord, state rgpipe.State) (*rgpipe.Batch, rgpipe.State, error) {
	acc := newAccumulator(state)

	var emit func(i int, s rgpipe.SessionRecord) error
	switch v {
	case rgpipe.VariantFlat:
		emit = acc.flat
	case rgpipe.VariantGrouped:
		emit = acc.grouped
	default:
		return nil, state, fmt.Errorf("flatten: variant %s: %w", v, rgpipe.ErrInvalidConfig)
	}

	for i, s := range sessions {
		if err := emit(i, s); err != nil {
			return nil, state, err
		}
	}

	return &acc.batch, acc.state(), nil
}

func (a *accumulator) state() rgpipe.State {
	return rgpipe.State{
		Subjects:        a.subjects,
		NextSession:     a.nextSession,
		NextStimulation: a.nextStimulation,
		NextSpikeGroup:  a.nextSpikeGroup,
		NextSpike:       a.nextSpike,
	}
}

// subject returns the id for name, emitting a Subject row the first time the name is seen.
func (a *accumulator) subject(name string) int64 {
	if id, ok := a.subjectIDs[name]; ok {
		return id
	}
	row := rgpipe.Subject{ID: a.nextSubject, Name: name}
	a.nextSubject++
	a.subjectIDs[name] = row.ID
	a.subjects = append(a.subjects, row)
	a.batch.Subjects = append(a.batch.Subjects, row)
	return row.ID
}

func (a *accumulator) flat(i int, s rgpipe.SessionRecord) error {
	subjectID := a.subject(s.SubjectName)

	if len(s.Stimulations) == 0 {
		a.batch.Sessions = append(a.batch.Sessions, rgpipe.Session{
			ID:           a.nextSession,
			SampleNumber: s.SampleNumber,
			SessionDate:  s.SessionDate,
			SubjectID:    subjectID,
		})
		a.nextSession++
		return nil
	}

	for j, stim := range s.Stimulations {
		stimID := a.nextStimulation
		row, err := stimulationRow(stimID, stim, false)
		if err != nil {
			return fmt.Errorf("session %d (%s) stimulation %d: %w", i, s.SubjectName, j, err)
		}

		a.batch.Sessions = append(a.batch.Sessions, rgpipe.Session{
			ID:            a.nextSession,
			SampleNumber:  s.SampleNumber,
			SessionDate:   s.SessionDate,
			SubjectID:     subjectID,
			StimulationID: ref(stimID),
		})
		a.nextSession++

		a.batch.Stimulations = append(a.batch.Stimulations, row)
		for _, t := range stim.Spikes {
			a.batch.Spikes = append(a.batch.Spikes, rgpipe.Spike{
				ID:             a.nextSpike,
				SpikeTime:      t,
				SpikeMovieTime: t - stim.StimulusOnset,
				StimulationID:  ref(stimID),
			})
			a.nextSpike++
		}
		a.nextStimulation++
	}
	return nil
}

func (a *accumulator) grouped(i int, s rgpipe.SessionRecord) error {
	subjectID := a.subject(s.SubjectName)
	sessionID := a.nextSession

	a.batch.Sessions = append(a.batch.Sessions, rgpipe.Session{
		ID:           sessionID,
		SampleNumber: s.SampleNumber,
		SessionDate:  s.SessionDate,
		SubjectID:    subjectID,
	})

	for j, stim := range s.Stimulations {
		stimID := a.nextStimulation
		row, err := stimulationRow(stimID, stim, true)
		if err != nil {
			return fmt.Errorf("session %d (%s) stimulation %d: %w", i, s.SubjectName, j, err)
		}
		row.SessionID = ref(sessionID)
		a.batch.Stimulations = append(a.batch.Stimulations, row)

		for k, group := range stim.SpikeGroups {
			groupID := a.nextSpikeGroup
			a.batch.SpikeGroups = append(a.batch.SpikeGroups, rgpipe.SpikeGroup{ID: groupID, StimulationID: stimID})

			for n, tuple := range group {
				if len(tuple) == 0 {
					return fmt.Errorf("session %d (%s) stimulation %d spike group %d: spike %d has no time: %w",
						i, s.SubjectName, j, k, n, rgpipe.ErrMalformedRecord)
				}
				t := tuple[0]
				a.batch.Spikes = append(a.batch.Spikes, rgpipe.Spike{
					ID:             a.nextSpike,
					SpikeTime:      t,
					SpikeMovieTime: t - stim.StimulusOnset,
					SpikeGroupID:   ref(groupID),
				})
				a.nextSpike++
			}
			a.nextSpikeGroup++
		}
		a.nextStimulation++
	}

	a.nextSession++
	return nil
}

func stimulationRow(id int64, stim rgpipe.StimulationRecord, withShape bool) (rgpipe.Stimulation, error) {
	movie, err := EncodeMovie(stim.Movie)
	if err != nil {
		return rgpipe.Stimulation{}, err
	}
	row := rgpipe.Stimulation{
		ID:            id,
		FPS:           stim.FPS,
		Movie:         movie,
		NFrames:       stim.NFrames,
		PixelSize:     stim.PixelSize,
		StimHeight:    stim.StimHeight,
		StimWidth:     stim.StimWidth,
		StimulusOnset: stim.StimulusOnset,
		XBlockSize:    stim.XBlockSize,
		YBlockSize:    stim.YBlockSize,
	}
	if withShape {
		row.MovieShape = ShapeText(stim.Movie.Shape)
	}
	return row, nil
}

func ref(id int64) *int64 {
	return &id
}
