// Package browser provides the headless-Chrome fallback for pages
// that only deliver their content through scripts. It is config-gated
// and off by default; the plain HTTP fetcher handles everything else.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"trailscout/internal/logging"
	"trailscout/internal/scrape"
)

// Config holds browser configuration.
type Config struct {
	Headless            bool `json:"headless"`
	ViewportWidth       int  `json:"viewport_width"`
	ViewportHeight      int  `json:"viewport_height"`
	NavigationTimeoutMs int  `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Renderer owns one detached Chrome instance and renders pages on
// demand. It lazily launches the browser on first use and implements
// scrape.Renderer.
type Renderer struct {
	cfg      Config
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRenderer creates a renderer. The browser is not launched until
// the first Render call.
func NewRenderer(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// Start launches or reconnects the browser.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(ctx)
}

func (r *Renderer) startLocked(ctx context.Context) error {
	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return nil
		}
		logging.Browser("stale browser connection, relaunching")
		_ = r.browser.Close()
		r.browser = nil
	}

	l := launcher.New().Headless(r.cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	r.launcher = l
	r.browser = b
	logging.Browser("browser connected")
	return nil
}

// IsConnected reports whether a browser is attached.
func (r *Renderer) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.browser != nil
}

// Render loads the page in an incognito context, waits for the load
// event, and reduces the rendered HTML the same way the plain fetcher
// does.
func (r *Renderer) Render(ctx context.Context, pageURL string) (*scrape.Page, error) {
	r.mu.Lock()
	if err := r.startLocked(ctx); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	browser := r.browser
	r.mu.Unlock()

	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	timer := logging.StartTimer(logging.CategoryBrowser, "render "+pageURL)
	defer timer.Stop()

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.GetViewportWidth(),
		Height:            r.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.Browser("warning: failed to set viewport: %v", err)
	}

	page = page.Context(ctx).Timeout(r.cfg.NavigationTimeout())
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	rawHTML, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html: %w", err)
	}

	reduced, err := scrape.ReduceHTML(pageURL, rawHTML)
	if err != nil {
		return nil, fmt.Errorf("reduce rendered html: %w", err)
	}
	reduced.Rendered = true
	logging.Browser("rendered %s: %d chars, %d links", pageURL, len(reduced.Content), len(reduced.Links))
	return reduced, nil
}

// Shutdown closes the browser and cleans up the launcher's temp dirs.
func (r *Renderer) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}
