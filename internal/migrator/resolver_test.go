package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/types"
)

func conflictsOn(keys ...string) *ConflictSet {
	set := &ConflictSet{Existing: map[string]types.Record{}}
	for _, k := range keys {
		set.Existing[k] = types.Record{k}
	}
	return set
}

func TestResolve(t *testing.T) {
	records := keyed([]any{"1"}, []any{"2"}, []any{"3"}, []any{"4"})
	conflicts := conflictsOn("2", "4")

	tests := []struct {
		policy string
		insert []string
		update []string
		skip   []string
	}{
		{config.OnConflictSkip, []string{"1", "3"}, nil, []string{"2", "4"}},
		{config.OnConflictOverwrite, []string{"1", "3"}, []string{"2", "4"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			res, err := Resolve(records, conflicts, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.insert, nilIfEmpty(keysOf(res.ToInsert)))
			assert.Equal(t, tt.update, nilIfEmpty(keysOf(res.ToUpdate)))
			assert.Equal(t, tt.skip, nilIfEmpty(keysOf(res.ToSkip)))
		})
	}
}

func TestResolve_Abort(t *testing.T) {
	records := keyed([]any{"1"}, []any{"2"})

	_, err := Resolve(records, conflictsOn("2"), config.OnConflictAbort)
	assert.ErrorIs(t, err, types.ErrConflictsPresent)

	res, err := Resolve(records, conflictsOn(), config.OnConflictAbort)
	require.NoError(t, err)
	assert.Len(t, res.ToInsert, 2)
}

func TestResolve_UnknownPolicy(t *testing.T) {
	_, err := Resolve(nil, nil, "merge")
	assert.Error(t, err)
}

func TestResolve_NilConflicts(t *testing.T) {
	res, err := Resolve(keyed([]any{"1"}), nil, config.OnConflictSkip)
	require.NoError(t, err)
	assert.Len(t, res.ToInsert, 1)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
