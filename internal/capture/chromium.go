// Package capture renders calendar web pages with headless Chromium so
// they can go through the same extraction as an uploaded scan.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "calscan/internal/log"
)

const (
	DefaultWidth   = 1600
	DefaultHeight  = 1200
	DefaultTimeout = 45 * time.Second
)

// DefaultWaitSelector is the element that must be visible before capture.
const DefaultWaitSelector = "body"

// Options controls a page capture.
type Options struct {
	URL string
	// WaitSelector is a CSS selector to wait for; district sites often
	// render the calendar widget late.
	WaitSelector string
	Width        int
	Height       int
	Timeout      time.Duration
	// OutputPath, when set, also writes the screenshot to disk.
	OutputPath string
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.WaitSelector == "" {
		o.WaitSelector = DefaultWaitSelector
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// Screenshot navigates to opts.URL and returns a full-page PNG.
func Screenshot(parent context.Context, opts Options) ([]byte, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery),
		// Let web fonts and late layout settle.
		chromedp.Sleep(500*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot %s: %w", opts.URL, err)
	}
	appLog.Info("capture screenshot done", "bytes", len(png), "width", opts.Width)

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return nil, fmt.Errorf("capture: write PNG: %w", err)
		}
	}
	return png, nil
}

// Text returns the rendered text of the element matched by
// opts.WaitSelector. Listing pages need no OCR when their text is real.
func Text(parent context.Context, opts Options) (string, error) {
	if err := opts.normalize(); err != nil {
		return "", err
	}
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var text string
	err := chromedp.Run(ctx,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery),
		chromedp.Text(opts.WaitSelector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("capture: text %s: %w", opts.URL, err)
	}
	return text, nil
}

// Chromium exposes Screenshot and Text as methods for callers that take
// the browser as a dependency.
type Chromium struct{}

func (Chromium) Screenshot(ctx context.Context, opts Options) ([]byte, error) {
	return Screenshot(ctx, opts)
}

func (Chromium) Text(ctx context.Context, opts Options) (string, error) {
	return Text(ctx, opts)
}
