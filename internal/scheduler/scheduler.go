// Package scheduler re-extracts configured calendar sources on cron
// schedules and records each result as a stored run.
package scheduler

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calscan/internal/capture"
	"calscan/internal/config"
	appLog "calscan/internal/log"
	"calscan/internal/ocr"
	"calscan/internal/pipeline"
	"calscan/internal/source"
	"calscan/internal/store"
)

// ErrUnchanged is returned by Refresh when the source body is identical
// to the one last extracted.
var ErrUnchanged = errors.New("scheduler: source unchanged")

// Fetcher downloads a source document.
type Fetcher interface {
	Fetch(ctx context.Context, r source.Remote) (source.FetchResult, error)
}

// Browser renders web pages.
type Browser interface {
	Screenshot(ctx context.Context, opts capture.Options) ([]byte, error)
	Text(ctx context.Context, opts capture.Options) (string, error)
}

// RunSaver persists extraction runs.
type RunSaver interface {
	SaveRun(ctx context.Context, run *store.Run) error
}

// Runner performs one refresh of a source.
type Runner struct {
	Config  *config.Config
	Fetcher Fetcher
	Browser Browser
	Engine  ocr.Engine
	Store   RunSaver

	mu   sync.Mutex
	last map[string][sha256.Size]byte
}

// Refresh fetches src, extracts its events and saves a run. Bodies equal
// to the last extracted one for the same source return ErrUnchanged.
func (r *Runner) Refresh(ctx context.Context, src config.SourceConfig) (*store.Run, error) {
	started := time.Now()
	mode, err := pipeline.ParseMode(src.Mode)
	if err != nil {
		return nil, err
	}
	req, err := pipeline.RequestFromConfig(r.Config, pipeline.Params{
		Mode:              mode,
		AcademicYearStart: src.AcademicYearStart,
		Year:              src.Year,
		Month:             time.Month(src.Month),
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: source %s: %w", src.ID, err)
	}

	res, sum, err := r.extract(ctx, src, req)
	if err != nil {
		return nil, err
	}

	run := &store.Run{
		SourceID:          src.ID,
		Filename:          src.URL,
		Mode:              string(res.Mode),
		AcademicYearStart: req.AcademicYearStart,
		Timezone:          r.Config.Timezone,
		RawText:           res.RawText,
		Events:            res.Events,
	}
	if err := r.Store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	if sum != nil {
		r.remember(src.ID, *sum)
	}
	appLog.Info("source refreshed",
		"source", src.ID,
		"run", run.ID,
		"mode", run.Mode,
		"events", len(run.Events),
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return run, nil
}

// extract reads src. The returned fingerprint, when non-nil, identifies the
// body that was read; Refresh records it once the run is saved.
func (r *Runner) extract(ctx context.Context, src config.SourceConfig, req pipeline.Request) (pipeline.Result, *[sha256.Size]byte, error) {
	if src.Kind == config.KindPage {
		return r.extractPage(ctx, src, req)
	}

	fr, err := r.Fetcher.Fetch(ctx, source.Remote{ID: src.ID, URL: src.URL})
	if err != nil {
		return pipeline.Result{}, nil, err
	}
	sum := sha256.Sum256(fr.Body)
	if r.seen(src.ID, sum) {
		return pipeline.Result{}, nil, ErrUnchanged
	}

	kind := source.Kind(src.Kind)
	if kind == "" {
		kind = source.SniffKind(fr.Body, fr.ContentType)
	}
	var res pipeline.Result
	switch kind {
	case source.KindText:
		res, err = pipeline.ExtractText(string(fr.Body), req.Mode, req)
	case source.KindPage:
		return r.extractPage(ctx, src, req)
	default:
		res, err = r.extractDocument(ctx, src, fr.Body, req)
	}
	if err != nil {
		return pipeline.Result{}, nil, err
	}
	return res, &sum, nil
}

// extractPage renders src in Chromium. Listing pages are read as DOM text;
// grid pages are screenshotted and go through OCR.
func (r *Runner) extractPage(ctx context.Context, src config.SourceConfig, req pipeline.Request) (pipeline.Result, *[sha256.Size]byte, error) {
	if r.Browser == nil {
		return pipeline.Result{}, nil, fmt.Errorf("scheduler: source %s needs a browser", src.ID)
	}
	opts := capture.Options{URL: src.URL, WaitSelector: src.WaitSelector}
	if req.Mode == pipeline.ModeListing {
		text, err := r.Browser.Text(ctx, opts)
		if err != nil {
			return pipeline.Result{}, nil, err
		}
		sum := sha256.Sum256([]byte(text))
		if r.seen(src.ID, sum) {
			return pipeline.Result{}, nil, ErrUnchanged
		}
		res, err := pipeline.ExtractText(text, req.Mode, req)
		if err != nil {
			return pipeline.Result{}, nil, err
		}
		return res, &sum, nil
	}

	png, err := r.Browser.Screenshot(ctx, opts)
	if err != nil {
		return pipeline.Result{}, nil, err
	}
	img, _, err := source.DecodeImage(png)
	if err != nil {
		return pipeline.Result{}, nil, fmt.Errorf("scheduler: source %s screenshot: %w", src.ID, err)
	}
	res, err := pipeline.ExtractImage(ctx, img, r.Engine, req)
	return res, nil, err
}

// extractDocument decodes a fetched image or PDF and reads every page.
func (r *Runner) extractDocument(ctx context.Context, src config.SourceConfig, body []byte, req pipeline.Request) (pipeline.Result, error) {
	pages, err := source.DecodeDocument(body)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("scheduler: source %s: %w", src.ID, err)
	}
	res, err := pipeline.ExtractPages(ctx, pages, r.Engine, req)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("scheduler: source %s: %w", src.ID, err)
	}
	return res, nil
}

// seen reports whether sum is the fingerprint of the last body saved for id.
func (r *Runner) seen(id string, sum [sha256.Size]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.last[id]
	return ok && prev == sum
}

// remember records sum as the last body saved for id.
func (r *Runner) remember(id string, sum [sha256.Size]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = make(map[string][sha256.Size]byte)
	}
	r.last[id] = sum
}

// RefreshAll refreshes every configured source in turn. Failures are
// logged; the number of runs saved is returned.
func (r *Runner) RefreshAll(ctx context.Context) int {
	saved := 0
	for _, src := range r.Config.Sources {
		if ctx.Err() != nil {
			break
		}
		if r.refreshLogged(ctx, src) {
			saved++
		}
	}
	return saved
}

func (r *Runner) refreshLogged(ctx context.Context, src config.SourceConfig) bool {
	_, err := r.Refresh(ctx, src)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrUnchanged):
		appLog.Debug("source unchanged", "source", src.ID)
	default:
		appLog.Error("source refresh failed", err, "source", src.ID)
	}
	return false
}

// Scheduler drives a Runner from each source's cron schedule.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron

	mu  sync.Mutex
	ctx context.Context
}

// New registers one job per configured source. Overlapping runs of the
// same job are skipped. An invalid schedule string fails here rather
// than at Start.
func New(runner *Runner, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{}
	s := &Scheduler{
		runner: runner,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx: context.Background(),
	}
	for _, src := range runner.Config.Sources {
		if _, err := s.cron.AddFunc(src.Refresh, func() { s.runner.refreshLogged(s.context(), src) }); err != nil {
			return nil, fmt.Errorf("scheduler: source %s: refresh %q: %w", src.ID, src.Refresh, err)
		}
	}
	return s, nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start refreshes every source once in the background, then follows the
// schedules until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	appLog.Info("scheduler starting", "sources", len(s.runner.Config.Sources))

	go func() {
		s.runner.RefreshAll(ctx)
		s.cron.Start()
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("scheduler stopped")
	}()
}

// cronLogger forwards cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
