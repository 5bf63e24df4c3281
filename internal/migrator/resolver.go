package migrator

import (
	"fmt"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Resolution partitions incoming records by what the loader will do with them.
type Resolution struct {
	ToInsert []types.KeyedRecord
	ToUpdate []types.KeyedRecord
	ToSkip   []types.KeyedRecord
}

// Resolve routes records according to the on_conflict policy. It performs no
// I/O and keeps input order within each partition. The abort policy fails
// with ErrConflictsPresent when any key conflicts.
func Resolve(records []types.KeyedRecord, conflicts *ConflictSet, onConflict string) (*Resolution, error) {
	switch onConflict {
	case config.OnConflictSkip, config.OnConflictOverwrite:
	case config.OnConflictAbort:
		if n := conflicts.Len(); n > 0 {
			return nil, fmt.Errorf("%w: %d of %d incoming keys already exist", types.ErrConflictsPresent, n, len(records))
		}
	default:
		return nil, fmt.Errorf("unknown on_conflict policy %q", onConflict)
	}

	res := &Resolution{}
	for _, r := range records {
		switch {
		case !conflicts.Contains(r.Key):
			res.ToInsert = append(res.ToInsert, r)
		case onConflict == config.OnConflictOverwrite:
			res.ToUpdate = append(res.ToUpdate, r)
		default:
			res.ToSkip = append(res.ToSkip, r)
		}
	}
	return res, nil
}
