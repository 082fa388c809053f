package recordstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUpsertInsertsThenMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.Upsert(ctx, "species", []Row{
		{"id": "sp-1", "common_name": "Okapi", "diet": "browse"},
		{"id": "sp-2", "common_name": "Kakapo"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Upsert(ctx, "species", []Row{{"id": "sp-1", "common_name": "Okapi johnstoni"}})
	require.NoError(t, err)

	rows, err := s.List(ctx, "species")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Okapi johnstoni", rows[0]["common_name"])
	assert.Equal(t, "browse", rows[0]["diet"])
	assert.Equal(t, false, rows[0][DeletedColumn])
}

func TestMemoryLanguagesKeyedByCode(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Upsert(ctx, "languages", []Row{{"id": "x", "name": "English"}})
	require.ErrorIs(t, err, ErrMissingKey)

	_, err = s.Upsert(ctx, "languages", []Row{{"code": "en", "name": "English"}})
	require.NoError(t, err)
	require.NoError(t, s.SoftDelete(ctx, "languages", "en"))

	rows, err := s.List(ctx, "languages")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, true, rows[0][DeletedColumn])
}

func TestMemoryRejectsUnknownCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Upsert(ctx, "session", []Row{{"id": "x"}})
	assert.ErrorIs(t, err, ErrUnknownCollection)
	assert.ErrorIs(t, s.SoftDelete(ctx, "nope", "x"), ErrUnknownCollection)
	_, err = s.List(ctx, "organization")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestMemoryBatchWithBadRowWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Upsert(ctx, "users", []Row{{"id": "u1"}, {"name": "anonymous"}})
	require.ErrorIs(t, err, ErrMissingKey)

	rows, err := s.List(ctx, "users")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemorySoftDeleteKeepsRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Upsert(ctx, "individuals", []Row{{"id": "i1"}})
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, "individuals", "i1"))
	assert.ErrorIs(t, s.SoftDelete(ctx, "individuals", "i9"), ErrNotFound)

	_, err = s.Upsert(ctx, "individuals", []Row{{"id": "i1", "name": "renamed"}})
	require.NoError(t, err)
	rows, _ := s.List(ctx, "individuals")
	require.Len(t, rows, 1)
	assert.Equal(t, true, rows[0][DeletedColumn], "a plain upsert does not undelete")
}

func TestMemorySnapshotListsEveryCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Upsert(ctx, "organizations", []Row{{"id": "org-1"}, {"id": "org-2", DeletedColumn: true}})
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, len(Collections))
	assert.Len(t, snap["organizations"], 2)
	assert.NotNil(t, snap["partnerships"])
	assert.Empty(t, snap["partnerships"])
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("couchdb", "")
	assert.Error(t, err)
}
