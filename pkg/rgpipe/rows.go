package rgpipe

import (
	"time"

	"github.com/google/uuid"
)

// Subject is a row of the subject table.
type Subject struct {
	ID   int64
	Name string
}

// Session is a row of the session table.
type Session struct {
	ID           int64
	SampleNumber int64
	SessionDate  time.Time
	SubjectID    int64

	// StimulationID is set only for VariantFlat. It is nil for a session
	// recorded without any stimulation.
	StimulationID *int64
}

// Stimulation is a row of the stimulation table.
type Stimulation struct {
	ID            int64
	FPS           float64
	Movie         []byte
	MovieShape    string // VariantGrouped only
	NFrames       int64
	PixelSize     float64
	StimHeight    int64
	StimWidth     int64
	StimulusOnset float64
	XBlockSize    int64
	YBlockSize    int64

	// SessionID is set only for VariantGrouped.
	SessionID *int64
}

// SpikeGroup is a row of the spike_group table (VariantGrouped only).
type SpikeGroup struct {
	ID            int64
	StimulationID int64
}

// Spike is a row of the spike table.
type Spike struct {
	ID             int64
	SpikeTime      float64
	SpikeMovieTime float64

	// STA is the spike-triggered average. It is never computed and always nil.
	STA []byte

	// Parent reference: StimulationID for VariantFlat, SpikeGroupID for VariantGrouped.
	StimulationID *int64
	SpikeGroupID  *int64
}

// Batch holds the rows produced for one data source, one slice per table.
type Batch struct {
	Subjects     []Subject
	Sessions     []Session
	Stimulations []Stimulation
	SpikeGroups  []SpikeGroup
	Spikes       []Spike
}

// Len returns the number of rows batched for table.
func (b *Batch) Len(table Table) int {
	switch table {
	case TableSubject:
		return len(b.Subjects)
	case TableSession:
		return len(b.Sessions)
	case TableStimulation:
		return len(b.Stimulations)
	case TableSpikeGroup:
		return len(b.SpikeGroups)
	case TableSpike:
		return len(b.Spikes)
	default:
		return 0
	}
}

// Counts returns the row count per table for the tables of v.
func (b *Batch) Counts(v Variant) map[Table]int {
	counts := make(map[Table]int)
	for _, t := range v.Tables() {
		counts[t] = b.Len(t)
	}
	return counts
}

// State is the target-table state a load continues from.
//
// Next* fields hold the next surrogate id to assign in each table. Targets
// compute them as MAX(id)+1, which is 1 for an empty table.
type State struct {
	Subjects        []Subject
	NextSession     int64
	NextStimulation int64
	NextSpikeGroup  int64
	NextSpike       int64
}

// EmptyState returns the state of a freshly built schema.
func EmptyState() State {
	return State{NextSession: 1, NextStimulation: 1, NextSpikeGroup: 1, NextSpike: 1}
}

// NextSubject returns the next subject id to assign.
func (s State) NextSubject() int64 {
	var maxID int64
	for _, sub := range s.Subjects {
		if sub.ID > maxID {
			maxID = sub.ID
		}
	}
	return maxID + 1
}

// IngestRun is one row of the ingest_run journal.
type IngestRun struct {
	RunID        uuid.UUID
	SourcePath   string
	SourceSHA256 string
	Variant      Variant
	Counts       map[Table]int
	LoadedAt     time.Time
}
