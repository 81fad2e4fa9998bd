// Package output manages the artifact directory of a run.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plansheet/internal/capture"
	appLog "plansheet/internal/log"
	"plansheet/internal/model"
)

// StampFormat is the per-run timestamp embedded in artifact names.
const StampFormat = "20060102-150405"

// ErrPersistFailed wraps a failure to keep the markup next to the PDF.
var ErrPersistFailed = errors.New("markup persistence failed")

// Dir is the output directory. It is only ever appended to, apart from the
// optional reset at run start.
type Dir struct {
	Path string
}

// Prepare creates the directory. With reset, existing entries are removed
// first; the directory itself is kept.
func (d Dir) Prepare(reset bool) error {
	if strings.TrimSpace(d.Path) == "" {
		return errors.New("output: directory is empty")
	}
	if reset {
		if err := d.clear(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("output: create %s: %w", d.Path, err)
	}
	return nil
}

func (d Dir) clear() error {
	abs, err := filepath.Abs(d.Path)
	if err != nil {
		return fmt.Errorf("output: resolve %s: %w", d.Path, err)
	}
	if abs == filepath.Dir(abs) {
		return fmt.Errorf("output: refusing to reset filesystem root %s", abs)
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == abs {
		return fmt.Errorf("output: refusing to reset home directory %s", abs)
	}

	entries, err := os.ReadDir(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("output: read %s: %w", abs, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(abs, e.Name())); err != nil {
			return fmt.Errorf("output: reset %s: %w", abs, err)
		}
	}
	appLog.Info("output directory reset", "dir", abs, "removed", len(entries))
	return nil
}

// Slug lowercases s and collapses every run of characters outside
// [a-z0-9] into a single '-'.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// maxSlugPart caps each slug component so that long profile names and plan
// titles still fit in a filename.
const maxSlugPart = 80

func slugPart(s string) string {
	v := Slug(s)
	if len(v) > maxSlugPart {
		v = strings.TrimRight(v[:maxSlugPart], "-")
	}
	return v
}

// BaseName returns the extension-less artifact name for one profile. An
// existing PDF of the same name gets a numeric suffix. A Stat failure other
// than "not found" is returned.
func (d Dir) BaseName(profileName, planTitle string, runAt time.Time) (string, error) {
	parts := make([]string, 0, 3)
	for _, p := range []string{slugPart(profileName), slugPart(planTitle)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "plansheet")
	}
	parts = append(parts, runAt.Format(StampFormat))
	base := strings.Join(parts, "_")

	name := base
	for i := 2; ; i++ {
		_, err := os.Stat(filepath.Join(d.Path, name+".pdf"))
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("output: check %s: %w", name+".pdf", err)
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

// Artifact lists the files a Publish call left on disk.
type Artifact struct {
	PDF  string
	HTML string
}

// Publish writes markup to a transient file, converts it to base.pdf and
// removes the transient file whatever the outcome. With keepHTML the
// markup is also written to base.html once the PDF exists. A failed
// conversion leaves neither file behind.
func (d Dir) Publish(ctx context.Context, conv capture.Converter, markup []byte, base string, o model.Orientation, keepHTML bool) (Artifact, error) {
	var art Artifact

	tmp, err := os.CreateTemp(d.Path, ".plansheet-*.html")
	if err != nil {
		return art, fmt.Errorf("%w: transient markup: %v", capture.ErrConversionFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, werr := tmp.Write(markup)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return art, fmt.Errorf("%w: transient markup: %v", capture.ErrConversionFailed, werr)
	}

	pdfPath := filepath.Join(d.Path, base+".pdf")
	if err := conv.Convert(ctx, tmpName, pdfPath, o); err != nil {
		_ = os.Remove(pdfPath)
		if !errors.Is(err, capture.ErrConversionFailed) {
			err = fmt.Errorf("%w: %v", capture.ErrConversionFailed, err)
		}
		return art, err
	}
	art.PDF = pdfPath

	if keepHTML {
		htmlPath := filepath.Join(d.Path, base+".html")
		if err := os.WriteFile(htmlPath, markup, 0o644); err != nil {
			_ = os.Remove(htmlPath)
			return art, fmt.Errorf("%w: %s: %v", ErrPersistFailed, htmlPath, err)
		}
		art.HTML = htmlPath
	}
	return art, nil
}
