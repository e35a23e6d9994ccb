package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/rgpipe/internal/flatten"
	"github.com/vvka-141/rgpipe/internal/manifest"
	"github.com/vvka-141/rgpipe/internal/source"
	"github.com/vvka-141/rgpipe/internal/store"
	"github.com/vvka-141/rgpipe/internal/store/memory"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// TargetOpener opens the configured target. The caller closes it.
type TargetOpener func(ctx context.Context) (rgpipe.Target, error)

// SourceResult reports one loaded source.
type SourceResult struct {
	Path     string
	SHA256   string
	Sessions int
	Counts   map[rgpipe.Table]int
	RunID    uuid.UUID
	Elapsed  time.Duration
}

// LoadSummary reports a whole load.
type LoadSummary struct {
	Target  string
	Variant rgpipe.Variant
	DryRun  bool
	Sources []SourceResult
}

// Totals sums the per-source counts.
func (s *LoadSummary) Totals() map[rgpipe.Table]int {
	totals := make(map[rgpipe.Table]int)
	for _, src := range s.Sources {
		for t, n := range src.Counts {
			totals[t] += n
		}
	}
	return totals
}

// IngestService implements the build, load and status commands.
// It is not safe for concurrent use.
type IngestService struct {
	open     TargetOpener
	approver rgpipe.Approver
	logger   rgpipe.Logger

	read  func(manifest.Source, rgpipe.Variant) (*source.File, error)
	now   func() time.Time
	newID func() uuid.UUID
}

// NewIngestService panics on nil dependencies.
func NewIngestService(open TargetOpener, approver rgpipe.Approver, logger rgpipe.Logger) *IngestService {
	if open == nil {
		panic("open cannot be nil")
	}
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &IngestService{
		open:     open,
		approver: approver,
		logger:   logger,
		read:     source.Read,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// Load loads every source of the manifest at cfg.ManifestPath. A dry run
// flattens against an empty in-memory target and never opens the configured
// one.
func (s *IngestService) Load(ctx context.Context, cfg rgpipe.LoadConfig) (*LoadSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	s.logger.Verbose("Manifest %s: %d source(s)", m.Path, len(m.Sources))

	var target rgpipe.Target
	if cfg.DryRun {
		target = memory.New("dry-run")
	} else {
		target, err = s.open(ctx)
		if err != nil {
			return nil, err
		}
	}
	defer target.Close()

	summary := &LoadSummary{Target: target.Name(), Variant: cfg.Variant, DryRun: cfg.DryRun}
	for i, src := range m.Sources {
		s.logger.Info("[%d/%d] %s", i+1, len(m.Sources), src.Path)
		res, err := s.loadSource(ctx, target, cfg.Variant, src)
		if err != nil {
			return summary, fmt.Errorf("source %d of %d: %w", i+1, len(m.Sources), err)
		}
		summary.Sources = append(summary.Sources, *res)
	}
	return summary, nil
}

func (s *IngestService) loadSource(ctx context.Context, target rgpipe.Target, v rgpipe.Variant, src manifest.Source) (*SourceResult, error) {
	start := s.now()

	file, err := s.read(src, v)
	if err != nil {
		return nil, err
	}
	s.logger.Verbose("Read %d session(s), %d bytes, sha256 %s", len(file.Sessions), file.Size, file.SHA256)

	state, err := target.State(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("read state of %s: %w", target.Name(), err)
	}
	s.logger.Verbose("State: %d subject(s), next session %d, next stimulation %d, next spike %d",
		len(state.Subjects), state.NextSession, state.NextStimulation, state.NextSpike)

	batch, _, err := flatten.Flatten(v, file.Sessions, state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	counts, err := store.Insert(ctx, target, v, batch, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	run := rgpipe.IngestRun{
		RunID:        s.newID(),
		SourcePath:   src.Path,
		SourceSHA256: file.SHA256,
		Variant:      v,
		Counts:       counts,
		LoadedAt:     s.now(),
	}
	if err := target.RecordRun(ctx, run); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	res := &SourceResult{
		Path:     src.Path,
		SHA256:   file.SHA256,
		Sessions: len(file.Sessions),
		Counts:   counts,
		RunID:    run.RunID,
		Elapsed:  s.now().Sub(start),
	}
	s.logger.Info("Loaded %s in %s", src.Path, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// Build creates the tables of cfg.Variant. With cfg.Clean it first asks the
// approver and drops them.
func (s *IngestService) Build(ctx context.Context, cfg rgpipe.BuildConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	target, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer target.Close()

	if cfg.Clean {
		approved, err := s.approver.RequestApproval(ctx, target.Name())
		if err != nil {
			return fmt.Errorf("approval: %w", err)
		}
		if !approved {
			return fmt.Errorf("dropping tables in %s: %w", target.Name(), rgpipe.ErrApprovalDenied)
		}
		s.logger.Info("Dropping %s tables in %s", cfg.Variant, target.Name())
		if err := target.DropTables(ctx, cfg.Variant); err != nil {
			return err
		}
	}

	s.logger.Info("Creating %s tables in %s", cfg.Variant, target.Name())
	return target.CreateTables(ctx, cfg.Variant)
}

// Status reports current row counts and recent runs.
type Status struct {
	Target  string
	Variant rgpipe.Variant
	Counts  map[rgpipe.Table]int64
	Runs    []rgpipe.IngestRun
}

// Status reads row counts for v and up to runs journal entries.
func (s *IngestService) Status(ctx context.Context, v rgpipe.Variant, runs int) (*Status, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("variant %s: %w", v, rgpipe.ErrInvalidConfig)
	}

	target, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer target.Close()

	counts, err := target.Counts(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w (run rgpipe build first?)", target.Name(), err)
	}
	recent, err := target.RecentRuns(ctx, runs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target.Name(), err)
	}
	return &Status{Target: target.Name(), Variant: v, Counts: counts, Runs: recent}, nil
}
