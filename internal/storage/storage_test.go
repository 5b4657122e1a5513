package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/storage"
	"github.com/stretchr/testify/require"
)

func stateTemplate() *container.Template {
	record := container.Dict([]string{"x"}, map[string]*container.Template{"x": container.Any})
	return container.AnyKeysDict(record)
}

func emptyState(t *testing.T) *container.Container {
	t.Helper()
	c, err := container.New("state", stateTemplate(), container.NewDict())
	require.NoError(t, err)
	return c
}

func TestSaveAllThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	tmpl := stateTemplate()

	store := graph.New(nil)
	require.NoError(t, store.Setup("u"))
	trunk := idgen.TrunkBranchID

	empty := emptyState(t)
	target := empty.Clone()
	rv := container.NewDict()
	rv.Set("x", container.Number(42))
	require.NoError(t, target.Set("k1", rv))
	delta, err := container.Delta(empty, target)
	require.NoError(t, err)
	_, err = store.Update(trunk, delta, nil)
	require.NoError(t, err)
	v1, err := store.Commit(trunk)
	require.NoError(t, err)

	repo, err := storage.New(dir, tmpl, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(store))

	loaded := graph.New(nil)
	loadedRepo, err := storage.New(dir, tmpl, nil)
	require.NoError(t, err)
	require.NoError(t, loadedRepo.Load(loaded))

	gotV1, err := loaded.GetVersion(v1)
	require.NoError(t, err)
	kind, err := gotV1.Kind()
	require.NoError(t, err)
	require.Equal(t, graph.KindChange, kind)
	require.NotNil(t, gotV1.Change.Deltas)
	require.True(t, gotV1.Change.Deltas.Equal(delta))

	gotTrunk, err := loaded.GetBranch(trunk)
	require.NoError(t, err)
	origTrunk, err := store.GetBranch(trunk)
	require.NoError(t, err)
	require.Equal(t, origTrunk.End, gotTrunk.End)

	require.Equal(t, store.IDInfo(), loaded.IDInfo())
}

func TestLoadIgnoresInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	tmpl := stateTemplate()
	repo, err := storage.New(dir, tmpl, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "versions", "v,bad.json"), []byte("{not json"), 0o644))

	loaded := graph.New(nil)
	require.NoError(t, repo.Load(loaded))
	_, err = loaded.GetVersion("v,bad")
	require.Error(t, err)
}

func TestLoadFailsOnVersionFilenameIDMismatch(t *testing.T) {
	dir := t.TempDir()
	tmpl := stateTemplate()

	store := graph.New(nil)
	require.NoError(t, store.Setup("u"))

	repo, err := storage.New(dir, tmpl, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(store))

	require.NoError(t, os.Rename(
		filepath.Join(dir, "versions", string(idgen.RootVersionID)+".json"),
		filepath.Join(dir, "versions", "wrong-stem.json"),
	))

	loaded := graph.New(nil)
	err = repo.Load(loaded)
	require.Error(t, err)
}

func TestLoadFailsOnBranchFilenameIDMismatch(t *testing.T) {
	dir := t.TempDir()
	tmpl := stateTemplate()

	store := graph.New(nil)
	require.NoError(t, store.Setup("u"))

	repo, err := storage.New(dir, tmpl, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(store))

	trunk, err := store.GetBranch(idgen.TrunkBranchID)
	require.NoError(t, err)
	require.NoError(t, os.Rename(
		filepath.Join(dir, "branches", string(trunk.ID)+".json"),
		filepath.Join(dir, "branches", "wrong-stem.json"),
	))

	loaded := graph.New(nil)
	err = repo.Load(loaded)
	require.Error(t, err)
}
