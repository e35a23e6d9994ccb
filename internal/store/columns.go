package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// IDColumn returns the surrogate key column of t.
func IDColumn(t rgpipe.Table) string {
	return string(t) + "_id"
}

// Columns returns the insert column list of t for variant v.
func Columns(v rgpipe.Variant, t rgpipe.Table) []string {
	switch t {
	case rgpipe.TableSubject:
		return []string{"subject_id", "subject_name"}
	case rgpipe.TableSession:
		cols := []string{"session_id", "sample_number", "session_date", "subject_id"}
		if v == rgpipe.VariantFlat {
			cols = append(cols, "stimulation_id")
		}
		return cols
	case rgpipe.TableStimulation:
		cols := []string{"stimulation_id", "fps", "movie"}
		if v == rgpipe.VariantGrouped {
			cols = append(cols, "movie_shape")
		}
		cols = append(cols, "n_frames", "pixel_size", "stim_height", "stim_width",
			"stimulus_onset", "x_block_size", "y_block_size")
		if v == rgpipe.VariantGrouped {
			cols = append(cols, "session_id")
		}
		return cols
	case rgpipe.TableSpikeGroup:
		return []string{"spike_group_id", "stimulation_id"}
	case rgpipe.TableSpike:
		cols := []string{"spike_id", "spike_time", "spike_movie_time", "sta"}
		if v == rgpipe.VariantFlat {
			return append(cols, "stimulation_id")
		}
		return append(cols, "spike_group_id")
	case rgpipe.TableIngestRun:
		return []string{"run_id", "source_path", "source_sha256", "variant",
			"subjects", "sessions", "stimulations", "spike_groups", "spikes", "loaded_at"}
	default:
		return nil
	}
}

// Rows returns the values batched for t, one slice per row, in Columns order.
// Nullable references are nil interface values when absent.
func Rows(v rgpipe.Variant, t rgpipe.Table, b *rgpipe.Batch) [][]any {
	switch t {
	case rgpipe.TableSubject:
		rows := make([][]any, len(b.Subjects))
		for i, s := range b.Subjects {
			rows[i] = []any{s.ID, s.Name}
		}
		return rows

	case rgpipe.TableSession:
		rows := make([][]any, len(b.Sessions))
		for i, s := range b.Sessions {
			row := []any{s.ID, s.SampleNumber, s.SessionDate, s.SubjectID}
			if v == rgpipe.VariantFlat {
				row = append(row, nullable(s.StimulationID))
			}
			rows[i] = row
		}
		return rows

	case rgpipe.TableStimulation:
		rows := make([][]any, len(b.Stimulations))
		for i, s := range b.Stimulations {
			row := []any{s.ID, s.FPS, nonNilBytes(s.Movie)}
			if v == rgpipe.VariantGrouped {
				row = append(row, s.MovieShape)
			}
			row = append(row, s.NFrames, s.PixelSize, s.StimHeight, s.StimWidth,
				s.StimulusOnset, s.XBlockSize, s.YBlockSize)
			if v == rgpipe.VariantGrouped {
				row = append(row, nullable(s.SessionID))
			}
			rows[i] = row
		}
		return rows

	case rgpipe.TableSpikeGroup:
		rows := make([][]any, len(b.SpikeGroups))
		for i, g := range b.SpikeGroups {
			rows[i] = []any{g.ID, g.StimulationID}
		}
		return rows

	case rgpipe.TableSpike:
		rows := make([][]any, len(b.Spikes))
		for i, s := range b.Spikes {
			var sta any
			if s.STA != nil {
				sta = s.STA
			}
			row := []any{s.ID, s.SpikeTime, s.SpikeMovieTime, sta}
			if v == rgpipe.VariantFlat {
				row = append(row, nullable(s.StimulationID))
			} else {
				row = append(row, nullable(s.SpikeGroupID))
			}
			rows[i] = row
		}
		return rows

	default:
		return nil
	}
}

// RunRow returns the ingest_run values of run in Columns order.
func RunRow(run rgpipe.IngestRun) []any {
	return []any{
		run.RunID, run.SourcePath, run.SourceSHA256, run.Variant.String(),
		run.Counts[rgpipe.TableSubject], run.Counts[rgpipe.TableSession],
		run.Counts[rgpipe.TableStimulation], run.Counts[rgpipe.TableSpikeGroup],
		run.Counts[rgpipe.TableSpike], run.LoadedAt.UTC().Truncate(time.Microsecond),
	}
}

// RunScan receives one ingest_run row in Columns order.
type RunScan struct {
	RunID        string
	SourcePath   string
	SourceSHA256 string
	Variant      string
	Subjects     int
	Sessions     int
	Stimulations int
	SpikeGroups  int
	Spikes       int
	LoadedAt     time.Time
}

// Dest returns scan destinations in Columns order. loadedAt receives the
// last column, letting a target scan it into its own representation.
func (r *RunScan) Dest(loadedAt any) []any {
	return []any{&r.RunID, &r.SourcePath, &r.SourceSHA256, &r.Variant,
		&r.Subjects, &r.Sessions, &r.Stimulations, &r.SpikeGroups, &r.Spikes, loadedAt}
}

// Run converts the scanned row.
func (r *RunScan) Run() (rgpipe.IngestRun, error) {
	id, err := uuid.Parse(r.RunID)
	if err != nil {
		return rgpipe.IngestRun{}, fmt.Errorf("run_id %q: %w", r.RunID, err)
	}
	v, err := rgpipe.ParseVariant(r.Variant)
	if err != nil {
		return rgpipe.IngestRun{}, fmt.Errorf("run %s: %w", r.RunID, err)
	}
	return rgpipe.IngestRun{
		RunID:        id,
		SourcePath:   r.SourcePath,
		SourceSHA256: r.SourceSHA256,
		Variant:      v,
		Counts: map[rgpipe.Table]int{
			rgpipe.TableSubject:     r.Subjects,
			rgpipe.TableSession:     r.Sessions,
			rgpipe.TableStimulation: r.Stimulations,
			rgpipe.TableSpikeGroup:  r.SpikeGroups,
			rgpipe.TableSpike:       r.Spikes,
		},
		LoadedAt: r.LoadedAt,
	}, nil
}

// DropOrder returns the journal followed by the tables of v, children first.
func DropOrder(v rgpipe.Variant) []rgpipe.Table {
	tables := v.Tables()
	out := make([]rgpipe.Table, 0, len(tables)+1)
	out = append(out, rgpipe.TableIngestRun)
	for i := len(tables) - 1; i >= 0; i-- {
		out = append(out, tables[i])
	}
	return out
}

func nullable(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
