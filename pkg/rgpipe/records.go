package rgpipe

import (
	"math"
	"time"
)

// SessionRecord is one decoded recording session from a data source.
type SessionRecord struct {
	SubjectName  string
	SampleNumber int64
	SessionDate  time.Time
	Stimulations []StimulationRecord
}

// StimulationRecord is one stimulus presentation inside a session.
//
// Exactly one of Spikes and SpikeGroups is populated, depending on the
// variant the source was decoded for: Spikes carries plain spike times for
// VariantFlat, SpikeGroups carries spike-time tuples grouped by detection unit
// for VariantGrouped.
type StimulationRecord struct {
	FPS           float64
	NFrames       int64
	PixelSize     float64
	StimHeight    int64
	StimWidth     int64
	StimulusOnset float64
	XBlockSize    int64
	YBlockSize    int64
	Movie         Movie

	Spikes      []float64
	SpikeGroups []SpikeGroupRecord
}

// SpikeGroupRecord holds the spike-time tuples of one detection unit.
// The first element of each tuple is the spike time.
type SpikeGroupRecord [][]float64

// Movie is an n-dimensional float64 array in row-major order.
type Movie struct {
	Shape []int
	Data  []float64
}

// Len returns the element count implied by Shape: the product of its
// dimensions, 1 for the scalar shape (). ok is false if a dimension is
// negative or the product overflows int.
func (m Movie) Len() (n int, ok bool) {
	n = 1
	for _, d := range m.Shape {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}
