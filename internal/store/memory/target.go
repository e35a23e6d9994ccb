// Package memory provides an in-process rgpipe.Target.
//
// It checks primary keys, subject name uniqueness and foreign keys on every
// append, the way the SQL targets' constraints would, and backs dry runs and
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// Target keeps every table in memory.
type Target struct {
	mu sync.Mutex

	name      string
	created   map[rgpipe.Variant]bool
	subjects  map[int64]rgpipe.Subject
	sessions  map[int64]rgpipe.Session
	stims     map[int64]rgpipe.Stimulation
	groups    map[int64]rgpipe.SpikeGroup
	spikes    map[int64]rgpipe.Spike
	runs      []rgpipe.IngestRun
	appendLog []rgpipe.Table

	// FailOn makes AppendTable return the mapped error for that table.
	FailOn map[rgpipe.Table]error
}

// New returns an empty target with the tables of every variant already created.
func New(name string) *Target {
	t := &Target{name: name}
	t.reset()
	t.created[rgpipe.VariantFlat] = true
	t.created[rgpipe.VariantGrouped] = true
	return t
}

func (t *Target) reset() {
	t.created = make(map[rgpipe.Variant]bool)
	t.subjects = make(map[int64]rgpipe.Subject)
	t.sessions = make(map[int64]rgpipe.Session)
	t.stims = make(map[int64]rgpipe.Stimulation)
	t.groups = make(map[int64]rgpipe.SpikeGroup)
	t.spikes = make(map[int64]rgpipe.Spike)
	t.runs = nil
}

func (t *Target) Name() string { return t.name }

// AppendLog returns the tables appended so far, in call order.
func (t *Target) AppendLog() []rgpipe.Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]rgpipe.Table(nil), t.appendLog...)
}

// Subjects returns the subject rows ordered by id.
func (t *Target) Subjects() []rgpipe.Subject {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedSubjects()
}

// Runs returns every journal row in append order.
func (t *Target) Runs() []rgpipe.IngestRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]rgpipe.IngestRun(nil), t.runs...)
}

func (t *Target) sortedSubjects() []rgpipe.Subject {
	out := make([]rgpipe.Subject, 0, len(t.subjects))
	for _, s := range t.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Target) State(ctx context.Context, v rgpipe.Variant) (rgpipe.State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireTables(v); err != nil {
		return rgpipe.State{}, err
	}
	return rgpipe.State{
		Subjects:        t.sortedSubjects(),
		NextSession:     maxKey(t.sessions) + 1,
		NextStimulation: maxKey(t.stims) + 1,
		NextSpikeGroup:  maxKey(t.groups) + 1,
		NextSpike:       maxKey(t.spikes) + 1,
	}, nil
}

func maxKey[V any](m map[int64]V) int64 {
	var top int64
	for k := range m {
		if k > top {
			top = k
		}
	}
	return top
}

func (t *Target) AppendTable(ctx context.Context, v rgpipe.Variant, table rgpipe.Table, b *rgpipe.Batch) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.requireTables(v); err != nil {
		return err
	}
	if err, ok := t.FailOn[table]; ok {
		return err
	}

	var err error
	switch table {
	case rgpipe.TableSubject:
		err = t.appendSubjects(b.Subjects)
	case rgpipe.TableSession:
		err = t.appendSessions(v, b.Sessions)
	case rgpipe.TableStimulation:
		err = t.appendStimulations(v, b.Stimulations)
	case rgpipe.TableSpikeGroup:
		err = t.appendSpikeGroups(v, b.SpikeGroups)
	case rgpipe.TableSpike:
		err = t.appendSpikes(v, b.Spikes)
	default:
		err = fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		return err
	}
	t.appendLog = append(t.appendLog, table)
	return nil
}

// Each append validates the whole slice before storing any row, matching a
// single multi-row statement that either succeeds or fails.

func (t *Target) appendSubjects(rows []rgpipe.Subject) error {
	names := make(map[string]bool, len(t.subjects)+len(rows))
	for _, s := range t.subjects {
		names[s.Name] = true
	}
	ids := make(map[int64]bool, len(rows))
	for _, s := range rows {
		if _, dup := t.subjects[s.ID]; dup || ids[s.ID] {
			return fmt.Errorf("duplicate key subject_id=%d", s.ID)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate subject_name %q", s.Name)
		}
		ids[s.ID] = true
		names[s.Name] = true
	}
	for _, s := range rows {
		t.subjects[s.ID] = s
	}
	return nil
}

func (t *Target) appendSessions(v rgpipe.Variant, rows []rgpipe.Session) error {
	ids := make(map[int64]bool, len(rows))
	for _, s := range rows {
		if _, dup := t.sessions[s.ID]; dup || ids[s.ID] {
			return fmt.Errorf("duplicate key session_id=%d", s.ID)
		}
		if _, ok := t.subjects[s.SubjectID]; !ok {
			return fmt.Errorf("session %d references missing subject %d", s.ID, s.SubjectID)
		}
		if v == rgpipe.VariantFlat && s.StimulationID != nil {
			if _, ok := t.stims[*s.StimulationID]; !ok {
				return fmt.Errorf("session %d references missing stimulation %d", s.ID, *s.StimulationID)
			}
		}
		ids[s.ID] = true
	}
	for _, s := range rows {
		t.sessions[s.ID] = s
	}
	return nil
}

func (t *Target) appendStimulations(v rgpipe.Variant, rows []rgpipe.Stimulation) error {
	ids := make(map[int64]bool, len(rows))
	for _, s := range rows {
		if _, dup := t.stims[s.ID]; dup || ids[s.ID] {
			return fmt.Errorf("duplicate key stimulation_id=%d", s.ID)
		}
		if v == rgpipe.VariantGrouped {
			if s.SessionID == nil {
				return fmt.Errorf("stimulation %d has no session", s.ID)
			}
			if _, ok := t.sessions[*s.SessionID]; !ok {
				return fmt.Errorf("stimulation %d references missing session %d", s.ID, *s.SessionID)
			}
		}
		ids[s.ID] = true
	}
	for _, s := range rows {
		t.stims[s.ID] = s
	}
	return nil
}

func (t *Target) appendSpikeGroups(v rgpipe.Variant, rows []rgpipe.SpikeGroup) error {
	if v != rgpipe.VariantGrouped {
		return fmt.Errorf("table spike_group does not exist in the %s layout", v)
	}
	ids := make(map[int64]bool, len(rows))
	for _, g := range rows {
		if _, dup := t.groups[g.ID]; dup || ids[g.ID] {
			return fmt.Errorf("duplicate key spike_group_id=%d", g.ID)
		}
		if _, ok := t.stims[g.StimulationID]; !ok {
			return fmt.Errorf("spike group %d references missing stimulation %d", g.ID, g.StimulationID)
		}
		ids[g.ID] = true
	}
	for _, g := range rows {
		t.groups[g.ID] = g
	}
	return nil
}

func (t *Target) appendSpikes(v rgpipe.Variant, rows []rgpipe.Spike) error {
	ids := make(map[int64]bool, len(rows))
	for _, s := range rows {
		if _, dup := t.spikes[s.ID]; dup || ids[s.ID] {
			return fmt.Errorf("duplicate key spike_id=%d", s.ID)
		}
		switch v {
		case rgpipe.VariantFlat:
			if s.StimulationID == nil {
				return fmt.Errorf("spike %d has no stimulation", s.ID)
			}
			if _, ok := t.stims[*s.StimulationID]; !ok {
				return fmt.Errorf("spike %d references missing stimulation %d", s.ID, *s.StimulationID)
			}
		case rgpipe.VariantGrouped:
			if s.SpikeGroupID == nil {
				return fmt.Errorf("spike %d has no spike group", s.ID)
			}
			if _, ok := t.groups[*s.SpikeGroupID]; !ok {
				return fmt.Errorf("spike %d references missing spike group %d", s.ID, *s.SpikeGroupID)
			}
		}
		ids[s.ID] = true
	}
	for _, s := range rows {
		t.spikes[s.ID] = s
	}
	return nil
}

func (t *Target) RecordRun(ctx context.Context, run rgpipe.IngestRun) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs = append(t.runs, run)
	return nil
}

func (t *Target) Counts(ctx context.Context, v rgpipe.Variant) (map[rgpipe.Table]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireTables(v); err != nil {
		return nil, err
	}
	counts := map[rgpipe.Table]int64{
		rgpipe.TableSubject:     int64(len(t.subjects)),
		rgpipe.TableSession:     int64(len(t.sessions)),
		rgpipe.TableStimulation: int64(len(t.stims)),
		rgpipe.TableSpike:       int64(len(t.spikes)),
	}
	if v == rgpipe.VariantGrouped {
		counts[rgpipe.TableSpikeGroup] = int64(len(t.groups))
	}
	return counts, nil
}

func (t *Target) RecentRuns(ctx context.Context, limit int) ([]rgpipe.IngestRun, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]rgpipe.IngestRun, 0, limit)
	for i := len(t.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.runs[i])
	}
	return out, nil
}

func (t *Target) CreateTables(ctx context.Context, v rgpipe.Variant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.created[v] = true
	return nil
}

// DropTables discards every row; both layouts share table names.
func (t *Target) DropTables(ctx context.Context, v rgpipe.Variant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
	return nil
}

func (t *Target) Close() error { return nil }

func (t *Target) requireTables(v rgpipe.Variant) error {
	if !t.created[v] {
		return fmt.Errorf("tables for the %s layout do not exist (run rgpipe build)", v)
	}
	return nil
}

var _ rgpipe.Target = (*Target)(nil)
