// Package browser drives Chromium through go-rod for UI suites and exposes
// pages in the shape the triage orchestrator consumes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"qatriage/internal/config"
	"qatriage/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string
	Launch            []string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
}

// ConfigFrom converts the browser section of cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DebuggerURL:       cfg.Browser.DebuggerURL,
		Launch:            cfg.Browser.Launch,
		Headless:          cfg.Browser.Headless,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		NavigationTimeout: cfg.GetNavigationTimeout(),
	}
}

func (c Config) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

func (c Config) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// Browser is a connected Chromium instance.
type Browser struct {
	cfg     Config
	browser *rod.Browser

	mu       sync.Mutex
	launched *launcher.Launcher
}

// Launch connects to cfg.DebuggerURL or starts a local browser.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	b := &Browser{cfg: cfg}

	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		l := b.launcher()
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		b.launched = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		b.killLaunched()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	logging.Browser("connected to browser at %s", controlURL)
	return b, nil
}

func (b *Browser) launcher() *launcher.Launcher {
	l := launcher.New().Headless(b.cfg.Headless)
	if len(b.cfg.Launch) == 0 {
		return l
	}
	if bin := b.cfg.Launch[0]; bin != "" {
		l = l.Bin(bin)
	}
	for _, rawFlag := range b.cfg.Launch[1:] {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// NewPage opens url in a fresh incognito context and waits for it to load.
func (b *Browser) NewPage(ctx context.Context, url string) (*Page, error) {
	if b.browser == nil {
		return nil, errors.New("browser not connected")
	}
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.viewportWidth(),
		Height:            b.cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	p := &Page{page: page, navTimeout: b.cfg.navigationTimeout()}
	if url != "" {
		if err := p.Navigate(ctx, url); err != nil {
			_ = page.Close()
			return nil, err
		}
	}
	return p, nil
}

// Close disconnects and, when this process launched the browser, stops it.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	b.killLaunched()
	return err
}

func (b *Browser) killLaunched() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.launched != nil {
		b.launched.Kill()
		b.launched.Cleanup()
		b.launched = nil
	}
}
