// Package viewer opens receipt documents in Chrome and asks it to print them.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/campusfin/client/internal/application/receipt"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultViewerTimeout = 30 * time.Second

// printScript resolves once the print dialog has been dismissed. In headless
// mode Chrome fires afterprint immediately.
const printScript = `new Promise(resolve => {
	window.addEventListener('afterprint', () => resolve(true), {once: true});
	setTimeout(() => window.print(), 0);
})`

// ChromeViewer opens each document in its own tab of a shared browser
type ChromeViewer struct {
	cfg         config.ViewerConfig
	execPath    string
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// Option configures a ChromeViewer
type Option func(*ChromeViewer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(v *ChromeViewer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithExecPath launches a specific Chrome binary instead of searching PATH
func WithExecPath(path string) Option {
	return func(v *ChromeViewer) { v.execPath = path }
}

// NewChromeViewer prepares the browser allocator. Chrome itself starts on the
// first Open.
func NewChromeViewer(cfg config.ViewerConfig, opts ...Option) *ChromeViewer {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultViewerTimeout
	}
	v := &ChromeViewer{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}

	if cfg.RemoteURL != "" {
		v.allocCtx, v.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return v
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
	)
	if cfg.NoSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}
	if v.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(v.execPath))
	}
	v.allocCtx, v.allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	return v
}

// Open writes doc to a private temp directory and navigates a new tab to it.
// The returned window owns the tab and the temp directory.
func (v *ChromeViewer) Open(ctx context.Context, name string, doc []byte) (receipt.Window, error) {
	dir, err := os.MkdirTemp("", "campusfin-view-")
	if err != nil {
		return nil, fmt.Errorf("failed to create view directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(v.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			v.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	stop := context.AfterFunc(ctx, cancel)

	w := &chromeWindow{ctx: tabCtx, cancel: cancel, stop: stop, dir: dir, timeout: v.cfg.Timeout}

	// The first Run starts the browser and must not carry a deadline, or the
	// browser is torn down when the deadline passes.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, v.cfg.Timeout)
	defer navCancel()
	fileURL := (&url.URL{Scheme: "file", Path: path}).String()
	if err := chromedp.Run(navCtx, chromedp.Navigate(fileURL)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	v.logger.Debug("document opened", zap.String("url", fileURL))
	return w, nil
}

// Close shuts the browser down
func (v *ChromeViewer) Close() error {
	if v.allocCancel != nil {
		v.allocCancel()
	}
	return nil
}

type chromeWindow struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stop    func() bool
	dir     string
	timeout time.Duration

	closeOnce sync.Once
}

// WaitLoaded blocks until the document body is ready
func (w *chromeWindow) WaitLoaded(ctx context.Context) error {
	return w.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

// Print opens the print dialog and waits for it to be dismissed
func (w *chromeWindow) Print(ctx context.Context) error {
	var done bool
	return w.run(ctx, chromedp.Evaluate(printScript, &done, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

// run executes actions on the tab, bounded by both ctx and the viewer timeout
func (w *chromeWindow) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

// Close closes the tab and removes the temp directory
func (w *chromeWindow) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.stop()
		w.cancel()
		err = os.RemoveAll(w.dir)
	})
	return err
}

var _ receipt.Viewer = (*ChromeViewer)(nil)
