package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/store"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	f, err := store.NewFileStore(t.TempDir(), "recommendations")
	require.NoError(t, err)

	recs, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	f, err := store.NewFileStore(dir, "recommendations")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "recommendations.json"), f.Path())

	want := sampleList()
	require.NoError(t, f.Save(ctx, want))

	got, err := f.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, listEquality); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_LastSave(t *testing.T) {
	ctx := context.Background()
	f, err := store.NewFileStore(t.TempDir(), "recommendations")
	require.NoError(t, err)

	_, _, ok, err := f.LastSave(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Save(ctx, sampleList()))
	s := store.New(f, nil)
	defer s.Close()

	savedAt, count, ok, err := s.LastSave(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(sampleList()), count)
	assert.False(t, savedAt.IsZero())
}

func TestFileStore_CorruptDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":         `{{{`,
		"wrong shape":      `{"id": "a"}`,
		"missing id":       `[{"title": "x", "createdAt": "2025-07-15T10:00:00Z"}]`,
		"missing created":  `[{"id": "a", "title": "x"}]`,
		"bad timestamp":    `[{"id": "a", "title": "x", "createdAt": "yesterday"}]`,
		"actions not list": `[{"id": "a", "title": "x", "createdAt": "2025-07-15T10:00:00Z", "actions": "regar"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "recommendations.json"), []byte(body), 0o644))

			f, err := store.NewFileStore(dir, "recommendations")
			require.NoError(t, err)

			_, err = f.Load(context.Background())
			assert.ErrorIs(t, err, store.ErrCorruptState)
		})
	}
}

func TestFileStore_CorruptFileRecoversThroughStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recommendations.json"), []byte("garbage"), 0o644))

	f, err := store.NewFileStore(dir, "recommendations")
	require.NoError(t, err)

	s := store.New(f, nil)
	require.NoError(t, s.Load(context.Background(), now))
	assert.Empty(t, s.Recommendations())

	replace(s, sampleList()[:1]...)
	require.NoError(t, s.Close())

	got, err := f.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.PriorityHigh, got[0].Priority)
}

func TestOpenPersister(t *testing.T) {
	dir := t.TempDir()

	p, err := store.OpenPersister(model.StoreConfig{Driver: "file", Path: dir, Key: "recommendations"})
	require.NoError(t, err)
	assert.IsType(t, &store.FileStore{}, p)
	require.NoError(t, p.Close())

	p, err = store.OpenPersister(model.StoreConfig{
		Driver: "sqlite", Path: filepath.Join(dir, "nested", "state.db"), Key: "recommendations",
	})
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, p)
	require.NoError(t, p.Close())

	_, err = store.OpenPersister(model.StoreConfig{Driver: "redis"})
	assert.Error(t, err)
}
