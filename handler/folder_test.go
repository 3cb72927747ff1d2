package handler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotfile-go/converter"
)

type item struct {
	Name string `yaml:"name"`
}

func TestFolderHandler_Scenario(t *testing.T) {
	reg, root, _ := newRegistry(t)
	dir := filepath.Join(root, "items")
	writeFile(t, filepath.Join(dir, "a.yml"), "name: a\n", 0)
	writeFile(t, filepath.Join(dir, "b.yml"), "name: b\n", 0)
	touch(t, dir, 0)

	h, err := NewFolderHandler[*item](reg, "items", converter.YAML[*item]{}, false)
	require.NoError(t, err)

	objs := h.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, "a", objs[0].Name)
	assert.Equal(t, "b", objs[1].Name)

	writeFile(t, filepath.Join(dir, "c.yml"), "name: c\n", 0)
	touch(t, dir, time.Second)

	ok, err := h.OnReload()
	require.NoError(t, err)
	assert.True(t, ok)
	objs = h.Objects()
	require.Len(t, objs, 3)
	assert.Equal(t, "c", objs[2].Name)

	ok, err = h.OnReload()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, h.Objects(), 3)
}

func TestFolderHandler_DeleteShrinks(t *testing.T) {
	reg, root, events := newRegistry(t)
	dir := filepath.Join(root, "items")
	writeFile(t, filepath.Join(dir, "a.yml"), "name: a\n", 0)
	writeFile(t, filepath.Join(dir, "b.yml"), "name: b\n", 0)
	touch(t, dir, 0)

	h, err := NewFolderHandler[*item](reg, "items", converter.YAML[*item]{}, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.yml")))
	touch(t, dir, time.Second)

	ok, err := h.OnReload()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"b.yml"}, h.Files())
	assert.Equal(t, []string{"items"}, events.paths())
}

func TestFolderHandler_ContentChangeKeepsStructure(t *testing.T) {
	reg, root, events := newRegistry(t)
	dir := filepath.Join(root, "items")
	writeFile(t, filepath.Join(dir, "a.yml"), "name: a\n", 0)
	writeFile(t, filepath.Join(dir, "b.yml"), "name: b\n", 0)
	touch(t, dir, 0)

	h, err := NewFolderHandler[*item](reg, "items", converter.YAML[*item]{}, false)
	require.NoError(t, err)
	before := h.Handlers()

	writeFile(t, filepath.Join(dir, "b.yml"), "name: b2\n", time.Second)
	touch(t, dir, 0)

	ok, err := h.OnReload()
	require.NoError(t, err)
	assert.True(t, ok)
	objs := h.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, "b2", objs[1].Name)
	// children were reloaded in place, not rebuilt
	assert.Same(t, before[1], h.Handlers()[1])
	assert.Equal(t, []string{filepath.Join("items", "b.yml"), "items"}, events.paths())

	ok, err = h.OnReload()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFolderHandler_FailedChildKeepsIndex(t *testing.T) {
	reg, root, _ := newRegistry(t)
	dir := filepath.Join(root, "items")
	writeFile(t, filepath.Join(dir, "a.yml"), "name: a\n", 0)
	writeFile(t, filepath.Join(dir, "b.yml"), "name: [broken\n", 0)
	writeFile(t, filepath.Join(dir, "c.yml"), "name: c\n", 0)
	touch(t, dir, 0)

	h, err := NewFolderHandler[*item](reg, "items", converter.YAML[*item]{}, false)
	require.NoError(t, err)

	objs := h.Objects()
	require.Len(t, objs, 3)
	assert.Equal(t, "a", objs[0].Name)
	assert.Nil(t, objs[1])
	assert.Equal(t, "c", objs[2].Name)

	entries := h.Entries()
	assert.True(t, entries[0].Loaded)
	assert.False(t, entries[1].Loaded)
	assert.Equal(t, filepath.Join("items", "b.yml"), entries[1].Path)

	// the broken child is retried on later ticks and fills its slot
	ok, err := h.OnReload()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrParse)

	writeFile(t, filepath.Join(dir, "b.yml"), "name: b\n", time.Second)
	touch(t, dir, 0)
	ok, err = h.OnReload()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", h.Objects()[1].Name)
}

func TestFolderHandler_MissingAndEmptyDirectory(t *testing.T) {
	reg, root, _ := newRegistry(t)

	h, err := NewFolderHandler[*item](reg, "nowhere", converter.YAML[*item]{}, false)
	require.NoError(t, err)
	assert.Empty(t, h.Objects())
	assert.True(t, h.IsFolderEmpty())

	ok, err := h.OnReload()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	e, err := NewFolderHandler[*item](reg, "empty", converter.YAML[*item]{}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Len())

	// directory appears later
	writeFile(t, filepath.Join(root, "nowhere", "a.yml"), "name: a\n", 0)
	ok, err = h.OnReload()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, h.Len())
}

func TestFolderHandler_SkipsHiddenDirsAndFiltered(t *testing.T) {
	reg, root, _ := newRegistry(t)
	dir := filepath.Join(root, "items")
	writeFile(t, filepath.Join(dir, "a.yml"), "name: a\n", 0)
	writeFile(t, filepath.Join(dir, ".swap.yml"), "name: hidden\n", 0)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not yaml: [\n", 0)
	writeFile(t, filepath.Join(dir, "sub", "x.yml"), "name: x\n", 0)

	h, err := NewFolderHandler[*item](reg, "items", converter.YAML[*item]{}, false, WithExtensions(".yml", ".yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yml"}, h.Files())
}

func TestFolderHandler_ChildrenNeverRegistered(t *testing.T) {
	reg, root, _ := newRegistry(t)
	dir := filepath.Join(root, "items")
	writeFile(t, filepath.Join(dir, "a.yml"), "name: a\n", 0)

	h, err := NewFolderHandler[*item](reg, "items", converter.YAML[*item]{}, true)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 1, reg.Len())
	for _, c := range h.Handlers() {
		assert.False(t, c.IsAutoReloading())
		ok, err := reg.ContainsHandler(c)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	writeFile(t, filepath.Join(dir, "b.yml"), "name: b\n", 0)
	touch(t, dir, time.Hour)
	assert.Equal(t, []string{"items"}, reg.ReloadNow(testContext(t)))
	assert.Equal(t, 2, h.Len())
}

func TestFolderHandler_ListFailure(t *testing.T) {
	reg, root, _ := newRegistry(t)
	writeFile(t, filepath.Join(root, "file.yml"), "name: a\n", 0)

	_, err := NewFolderHandler[*item](reg, "file.yml", converter.YAML[*item]{}, false)
	assert.ErrorIs(t, err, ErrIO)
}
