package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"qatriage/internal/logging"
	"qatriage/internal/triage"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var (
	_ triage.PageState       = (*Page)(nil)
	_ triage.ScreenshotTaker = (*Page)(nil)
)

// Page adapts a rod page for tests and for failure triage.
type Page struct {
	page       *rod.Page
	navTimeout time.Duration
}

// NewPage wraps an existing rod page.
func NewPage(page *rod.Page) *Page {
	return &Page{page: page, navTimeout: 30 * time.Second}
}

// Rod exposes the underlying page for anything the adapter does not cover.
func (p *Page) Rod() *rod.Page { return p.page }

// URL returns the page's current address.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// Screenshot writes a full-page PNG to path.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	data, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	logging.BrowserDebug("screenshot saved to %s (%d bytes)", path, len(data))
	return nil
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Timeout(p.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type enters text into the first element matching selector.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	el, err := p.page.Context(ctx).Timeout(p.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.Input(text)
}

// Text returns the visible text of the first element matching selector.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.page.Context(ctx).Timeout(p.navTimeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.Text()
}

// Close closes the page.
func (p *Page) Close() error {
	return p.page.Close()
}
