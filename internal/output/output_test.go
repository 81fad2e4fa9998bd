package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plansheet/internal/capture"
	"plansheet/internal/model"
)

type copyConverter struct {
	fail  bool
	input string
}

func (c *copyConverter) Convert(_ context.Context, in, out string, _ model.Orientation) error {
	c.input = in
	if c.fail {
		_ = os.WriteFile(out, []byte("partial"), 0o644)
		return errors.New("exit status 1")
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte("%PDF "), data...), 0o644)
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "all-teams", Slug("All Teams"))
	assert.Equal(t, "a-v-lights", Slug("  A/V & Lights!! "))
	assert.Equal(t, "sunday-9am", Slug("Sunday @ 9AM"))
	assert.Equal(t, "", Slug("***"))
}

func TestBaseNameIsUniquePerRun(t *testing.T) {
	d := Dir{Path: t.TempDir()}
	at := time.Date(2025, 3, 9, 6, 0, 0, 0, time.UTC)

	first, err := d.BaseName("Band", "Sunday AM", at)
	require.NoError(t, err)
	assert.Equal(t, "band_sunday-am_20250309-060000", first)

	require.NoError(t, os.WriteFile(filepath.Join(d.Path, first+".pdf"), nil, 0o644))
	second, err := d.BaseName("band", "Sunday  AM", at)
	require.NoError(t, err)
	assert.Equal(t, first+"-2", second)

	fallback, err := d.BaseName("", "", at)
	require.NoError(t, err)
	assert.Equal(t, "plansheet_20250309-060000", fallback)
}

func TestBaseNameCapsLongNames(t *testing.T) {
	d := Dir{Path: t.TempDir()}
	at := time.Date(2025, 3, 9, 6, 0, 0, 0, time.UTC)

	done := make(chan struct{})
	var (
		name string
		err  error
	)
	go func() {
		defer close(done)
		name, err = d.BaseName(strings.Repeat("Production Team ", 12), strings.Repeat("Sunday Morning Gathering ", 6), at)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("BaseName did not return")
	}

	require.NoError(t, err)
	parts := strings.Split(name, "_")
	require.Len(t, parts, 3)
	assert.LessOrEqual(t, len(parts[0]), maxSlugPart)
	assert.LessOrEqual(t, len(parts[1]), maxSlugPart)
	assert.False(t, strings.HasSuffix(parts[0], "-"))
	require.NoError(t, os.WriteFile(filepath.Join(d.Path, name+".pdf"), nil, 0o644))
}

func TestBaseNameReturnsStatErrors(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Dir{Path: blocker}.BaseName("Band", "Sunday AM", time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "band_sunday-am_")
}

func TestPrepareReset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.pdf"), nil, 0o644))

	require.NoError(t, Dir{Path: dir}.Prepare(false))
	assert.Len(t, names(t, dir), 2)

	require.NoError(t, Dir{Path: dir}.Prepare(true))
	assert.Empty(t, names(t, dir))

	fresh := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, Dir{Path: fresh}.Prepare(true))
	assert.DirExists(t, fresh)
}

func TestPrepareRefusesRoot(t *testing.T) {
	assert.Error(t, Dir{Path: "/"}.Prepare(true))
	assert.Error(t, Dir{Path: ""}.Prepare(false))
}

func TestPublishCleansTransientFile(t *testing.T) {
	d := Dir{Path: t.TempDir()}
	conv := &copyConverter{}

	art, err := d.Publish(context.Background(), conv, []byte("<html>sheet</html>"), "band", model.Landscape, false)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Path, "band.pdf"), art.PDF)
	assert.Empty(t, art.HTML)
	assert.NoFileExists(t, conv.input)
	assert.Equal(t, []string{"band.pdf"}, names(t, d.Path))
}

func TestPublishKeepsHTML(t *testing.T) {
	d := Dir{Path: t.TempDir()}

	art, err := d.Publish(context.Background(), &copyConverter{}, []byte("<html/>"), "band", model.Portrait, true)

	require.NoError(t, err)
	assert.FileExists(t, art.HTML)
	assert.ElementsMatch(t, []string{"band.pdf", "band.html"}, names(t, d.Path))
}

func TestPublishConversionFailure(t *testing.T) {
	d := Dir{Path: t.TempDir()}
	conv := &copyConverter{fail: true}

	art, err := d.Publish(context.Background(), conv, []byte("<html/>"), "band", model.Landscape, false)

	require.ErrorIs(t, err, capture.ErrConversionFailed)
	assert.Empty(t, art.PDF)
	assert.NoFileExists(t, conv.input)
	assert.Empty(t, names(t, d.Path), "no partial pdf and no transient markup left")
}

func TestPublishConversionFailureKeepsNoMarkup(t *testing.T) {
	d := Dir{Path: t.TempDir()}

	art, err := d.Publish(context.Background(), &copyConverter{fail: true}, []byte("<html/>"), "band", model.Landscape, true)

	require.ErrorIs(t, err, capture.ErrConversionFailed)
	assert.Empty(t, art.HTML)
	assert.Empty(t, names(t, d.Path))
}
