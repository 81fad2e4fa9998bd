package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	appLog "plansheet/internal/log"
	"plansheet/internal/model"
)

// DefaultTimeoutSec bounds one conversion when no timeout is configured.
const DefaultTimeoutSec = 30

// ErrConversionFailed wraps every converter failure. It is scoped to one
// profile and never aborts the run.
var ErrConversionFailed = errors.New("conversion failed")

// Converter turns a markup file into a paginated PDF.
type Converter interface {
	Convert(ctx context.Context, htmlPath, pdfPath string, o model.Orientation) error
}

// Chromium prints pages with a headless Chromium driven through chromedp.
type Chromium struct {
	// ExecPath overrides Chromium discovery. Empty uses chromedp's lookup.
	ExecPath string
	// NoSandbox is needed when running as root inside containers.
	NoSandbox bool
	// Timeout bounds each conversion. Zero means DefaultTimeoutSec.
	Timeout time.Duration
}

// Convert loads htmlPath via file://, waits until the sheet root exposes
// data-ready="true", and prints it honoring the CSS @page rule.
func (c *Chromium) Convert(parentCtx context.Context, htmlPath, pdfPath string, o model.Orientation) error {
	if htmlPath == "" || pdfPath == "" {
		return fmt.Errorf("%w: input and output paths are required", ErrConversionFailed)
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	target := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	var pdf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate(target),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithLandscape(o == model.Landscape).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	}

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("%w: chromium print of %s: %v", ErrConversionFailed, htmlPath, err)
	}
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrConversionFailed, pdfPath, err)
	}

	appLog.Debug("chromium print completed", "output", pdfPath, "bytes", len(pdf), "elapsed", time.Since(start))
	return nil
}
