package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// Insert appends every table batch of b to target in the dependency order of v.
// It returns the number of rows appended per table. On failure the returned
// counts cover the tables appended before the failing one.
func Insert(ctx context.Context, target rgpipe.Target, v rgpipe.Variant, b *rgpipe.Batch, logger rgpipe.Logger) (map[rgpipe.Table]int, error) {
	tables := v.Tables()
	if tables == nil {
		return nil, fmt.Errorf("variant %s: %w", v, rgpipe.ErrInvalidConfig)
	}

	appended := make(map[rgpipe.Table]int, len(tables))
	for _, table := range tables {
		n := b.Len(table)
		logger.Info("Loading %s... (%d rows)", DisplayName(table), n)
		if n == 0 {
			appended[table] = 0
			continue
		}

		start := time.Now()
		if err := target.AppendTable(ctx, v, table, b); err != nil {
			logger.Error("Loading %s failed after %s", DisplayName(table), time.Since(start).Round(time.Millisecond))
			return appended, fmt.Errorf("table %s: %w: %w", table, rgpipe.ErrInsertFailed, err)
		}
		appended[table] = n
		logger.Verbose("%s: %d rows in %s", table, n, time.Since(start).Round(time.Millisecond))
	}
	return appended, nil
}

// DisplayName renders a table name the way load progress reports it.
func DisplayName(t rgpipe.Table) string {
	switch t {
	case rgpipe.TableSubject:
		return "Subjects"
	case rgpipe.TableSession:
		return "Sessions"
	case rgpipe.TableStimulation:
		return "Stimulations"
	case rgpipe.TableSpikeGroup:
		return "SpikeGroups"
	case rgpipe.TableSpike:
		return "Spikes"
	case rgpipe.TableIngestRun:
		return "IngestRuns"
	default:
		return string(t)
	}
}
