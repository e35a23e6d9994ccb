package source

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

func parse(t *testing.T, doc string) any {
	t.Helper()
	var v any
	d := json.NewDecoder(strings.NewReader(doc))
	d.UseNumber()
	require.NoError(t, d.Decode(&v))
	return v
}

const validStimulation = `{"fps": 60, "n_frames": 1, "pixel_size": 1, "stim_height": 1, "stim_width": 1,
	"stimulus_onset": 0, "x_block_size": 1, "y_block_size": 1, "movie": [0.5], "spikes": []}`

func TestSessions_MalformedRecords(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		variant rgpipe.Variant
		wantMsg string
	}{
		{"not a list", `{"subject_name": "x"}`, rgpipe.VariantFlat, "expected a list of sessions"},
		{"session not object", `[1]`, rgpipe.VariantFlat, "$[0]: expected an object"},
		{"missing subject", `[{"sample_number": 1, "session_date": "2020-01-01", "stimulations": []}]`, rgpipe.VariantFlat, `missing field "subject_name"`},
		{"subject not string", `[{"subject_name": 5, "sample_number": 1, "session_date": "2020-01-01", "stimulations": []}]`, rgpipe.VariantFlat, "$[0].subject_name: expected a string"},
		{"fractional sample", `[{"subject_name": "x", "sample_number": 1.5, "session_date": "2020-01-01", "stimulations": []}]`, rgpipe.VariantFlat, "expected an integer"},
		{"bad date", `[{"subject_name": "x", "sample_number": 1, "session_date": "yesterday", "stimulations": []}]`, rgpipe.VariantFlat, "unrecognized date"},
		{"missing stimulations", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01"}]`, rgpipe.VariantFlat, `missing field "stimulations"`},
		{"missing fps", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [{}]}]`, rgpipe.VariantFlat, `$[0].stimulations[0]: missing field "fps"`},
		{"flat spike not number", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
			strings.Replace(validStimulation, `"spikes": []`, `"spikes": ["a"]`, 1) + `]}]`, rgpipe.VariantFlat, "spikes[0]: expected a number"},
		{"grouped group not list", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
			strings.Replace(validStimulation, `"spikes": []`, `"spikes": [1.5]`, 1) + `]}]`, rgpipe.VariantGrouped, "spikes[0]: expected a list of spike times"},
		{"ragged movie", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
			strings.Replace(validStimulation, `"movie": [0.5]`, `"movie": [[1, 2], [3]]`, 1) + `]}]`, rgpipe.VariantFlat, "ragged array"},
		{"movie shape mismatch", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
			strings.Replace(validStimulation, `"movie": [0.5]`, `"movie": {"shape": [2, 2], "data": [1]}`, 1) + `]}]`, rgpipe.VariantFlat, "shape needs 4 values"},
		{"scalar movie with many values", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
			strings.Replace(validStimulation, `"movie": [0.5]`, `"movie": {"shape": [], "data": [1, 2, 3]}`, 1) + `]}]`, rgpipe.VariantFlat, "shape needs 1 values, data has 3"},
		{"movie shape overflows", `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
			strings.Replace(validStimulation, `"movie": [0.5]`, `"movie": {"shape": [4294967296, 4294967296], "data": []}`, 1) + `]}]`, rgpipe.VariantFlat, "too many elements"},
		{"sample number out of range", `[{"subject_name": "x", "sample_number": 1e30, "session_date": "2020-01-01", "stimulations": []}]`, rgpipe.VariantFlat, "out of range"},
		{"negative sample number out of range", `[{"subject_name": "x", "sample_number": -1e19, "session_date": "2020-01-01", "stimulations": []}]`, rgpipe.VariantFlat, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sessions(parse(t, tt.doc), tt.variant)
			require.ErrorIs(t, err, rgpipe.ErrMalformedRecord)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSessions_GroupedAcceptsBareSpikeTimes(t *testing.T) {
	doc := `[{"subject_name": "x", "sample_number": 1, "session_date": "2020-01-01", "stimulations": [` +
		strings.Replace(validStimulation, `"spikes": []`, `"spikes": [[1.5, [2.5, 0]]]`, 1) + `]}]`

	sessions, err := Sessions(parse(t, doc), rgpipe.VariantGrouped)
	require.NoError(t, err)
	assert.Equal(t, []rgpipe.SpikeGroupRecord{{{1.5}, {2.5, 0}}}, sessions[0].Stimulations[0].SpikeGroups)
}

func TestSessions_NullDocument(t *testing.T) {
	sessions, err := Sessions(nil, rgpipe.VariantFlat)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestFlattenArray(t *testing.T) {
	shape, data, err := flattenArray("$", parse(t, `[[[1, 2, 3], [4, 5, 6]]]`).([]any))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, data)

	shape, data, err = flattenArray("$", []any{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, shape)
	assert.Empty(t, data)
}

func TestInteger_Range(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"yaml float", float64(42), 42, false},
		{"yaml float too large", 1e30, 0, true},
		{"yaml float at 2^63", math.Ldexp(1, 63), 0, true},
		{"yaml float min", float64(math.MinInt64), math.MinInt64, false},
		{"json exponent", json.Number("1e3"), 1000, false},
		{"json exponent too large", json.Number("1e30"), 0, true},
		{"uint64 too large", uint64(math.MaxUint64), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := integer("$.n", tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, rgpipe.ErrMalformedRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
