package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/playwright-community/playwright-go"
	"outlier_scout/config"
	"outlier_scout/extension"
)

const (
	gridItemSelector  = "ytd-rich-item-renderer"
	anyItemSelector   = "ytd-rich-item-renderer, ytd-grid-video-renderer, ytd-video-renderer"
	navigationTimeout = 60 * time.Second
	countStaleLimit   = 5
)

var (
	// ErrExtensionMissing aborts a batch before any browser is started.
	ErrExtensionMissing = extension.ErrMissing
	// ErrNoVideoGrid means the channel page never rendered a video item.
	ErrNoVideoGrid = errors.New("video grid did not render")
)

// Session is one persistent Chromium context with the ranking extension
// loaded. Pages are opened and closed per channel.
type Session struct {
	browser config.BrowserConfig
	scout   config.ScoutConfig
	pw      *playwright.Playwright
	context playwright.BrowserContext
}

// OpenSession checks the extension folder and launches the browser.
func OpenSession(browser config.BrowserConfig, scout config.ScoutConfig) (*Session, error) {
	if err := extension.Ensure(browser.ExtensionPath); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(browser.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(browser.Headless),
		Args: []string{
			"--disable-extensions-except=" + browser.ExtensionPath,
			"--load-extension=" + browser.ExtensionPath,
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
		},
		Viewport: &playwright.Size{
			Width:  browser.ViewportWidth,
			Height: browser.ViewportHeight,
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Session{browser: browser, scout: scout, pw: pw, context: bctx}, nil
}

// Render loads the channel's videos tab, scrolls the whole grid into the DOM,
// waits for the extension badges and returns the page HTML.
func (s *Session) Render(ctx context.Context, channelURL string) (string, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	target := VideosURL(channelURL)
	log.Printf("Navigating to: %s", target)
	if _, err := page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(navigationTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", fmt.Errorf("navigate %s: %w", target, err)
	}

	if err := page.Locator(gridItemSelector).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(s.scout.GridTimeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("%w on %s: %v", ErrNoVideoGrid, channelURL, err)
	}

	switch s.scout.ScrollStrategy {
	case "count":
		err = s.scrollByCount(ctx, page)
	default:
		err = s.scrollByHeight(ctx, page)
	}
	if err != nil {
		return "", err
	}

	if err := sleep(ctx, s.scout.SettleDelay); err != nil {
		return "", err
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

// scrollByHeight scrolls to the bottom until the document height holds still
// across two consecutive checks.
func (s *Session) scrollByHeight(ctx context.Context, page playwright.Page) error {
	last := evalInt(page, "document.documentElement.scrollHeight")

	for i := 0; i < s.scout.MaxScrolls; i++ {
		if _, err := page.Evaluate("window.scrollTo(0, document.documentElement.scrollHeight)"); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleep(ctx, s.scout.ScrollPause); err != nil {
			return err
		}

		height := evalInt(page, "document.documentElement.scrollHeight")
		if height == last {
			if err := sleep(ctx, s.scout.ScrollPause); err != nil {
				return err
			}
			if height = evalInt(page, "document.documentElement.scrollHeight"); height == last {
				return nil
			}
		}
		last = height
	}

	log.Printf("Stopped scrolling after %d attempts", s.scout.MaxScrolls)
	return nil
}

// scrollByCount scrolls a viewport at a time until the number of grid items
// stops growing for several scrolls in a row.
func (s *Session) scrollByCount(ctx context.Context, page playwright.Page) error {
	items := page.Locator(anyItemSelector)
	current, stale := 0, 0

	for i := 0; i < s.scout.MaxScrolls; i++ {
		if _, err := page.Evaluate("window.scrollBy(0, window.innerHeight * 0.8)"); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleep(ctx, s.scout.ScrollPause); err != nil {
			return err
		}

		n, err := items.Count()
		if err != nil {
			return fmt.Errorf("count grid items: %w", err)
		}
		if n == current {
			if stale++; stale >= countStaleLimit {
				return nil
			}
			continue
		}
		stale = 0
		current = n
		log.Printf("Loaded ~%d videos...", current)
	}
	return nil
}

// Close releases the browser context and the driver.
func (s *Session) Close() error {
	var errs []error
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	return errors.Join(errs...)
}

func evalInt(page playwright.Page, expr string) int {
	v, err := page.Evaluate(expr)
	if err != nil {
		return -1
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return -1
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
