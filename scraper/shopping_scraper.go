package scraper

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"pricewatch/models"
)

var (
	// ErrScrapeFailed wraps every reason a results page could not be observed
	ErrScrapeFailed = eris.New("scrape failed")
	// ErrBotWall is returned when the search engine served a captcha or block page
	ErrBotWall = eris.New("blocked by bot wall")
)

const defaultSearchURL = "https://www.google.com/search"

// PageSource produces the raw offer rows for one catalog product
type PageSource interface {
	Observe(ctx context.Context, product string) ([]models.RawObservation, error)
}

// BrowserOptions configures the headless browser
type BrowserOptions struct {
	Bin         string
	Headless    bool
	PageTimeout time.Duration
	SettleDelay time.Duration
	SearchURL   string
}

// ShoppingScraper observes the store comparison table of a shopping search
// with a single headless Chromium. Pages are opened and closed one at a time.
type ShoppingScraper struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	botDetector *BotDetector
	opts        BrowserOptions
}

// NewShoppingScraper launches the browser and connects to it
func NewShoppingScraper(opts BrowserOptions) (*ShoppingScraper, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 10 * time.Second
	}
	if opts.SearchURL == "" {
		opts.SearchURL = defaultSearchURL
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Leakless(false).
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")

	// Prefer an explicit binary, then a system Chromium, then rod's auto-download
	switch {
	case opts.Bin != "":
		l = l.Bin(opts.Bin)
		zap.L().Info("using configured browser binary", zap.String("bin", opts.Bin))
	case fileExists("/usr/bin/chromium-browser"):
		l = l.Bin("/usr/bin/chromium-browser")
		zap.L().Info("using system Chromium")
	default:
		zap.L().Info("using auto-detected Chromium")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "failed to launch browser")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "failed to connect to browser")
	}
	zap.L().Info("browser connected", zap.String("control_url", controlURL))

	return &ShoppingScraper{
		launcher:    l,
		browser:     browser,
		botDetector: NewBotDetector(),
		opts:        opts,
	}, nil
}

// Close closes the browser and removes its profile
func (s *ShoppingScraper) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			zap.L().Warn("failed to close browser", zap.Error(err))
		}
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}

// Observe searches for product, switches to the stores tab and returns every
// offer row of the comparison table. Failures wrap ErrScrapeFailed, or
// ErrBotWall when a block page was served.
func (s *ShoppingScraper) Observe(ctx context.Context, product string) ([]models.RawObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pageBudget())
	defer cancel()

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: s.searchURL(product)})
	if err != nil {
		return nil, eris.Wrapf(ErrScrapeFailed, "open page for %q: %v", product, err)
	}
	defer closePage(page)

	if err := page.Timeout(s.opts.PageTimeout).WaitLoad(); err != nil {
		return nil, eris.Wrapf(ErrScrapeFailed, "wait load for %q: %v", product, err)
	}

	tab, err := page.Timeout(s.opts.PageTimeout).Element(storesTabSelector)
	if err != nil {
		return nil, s.explain(page, product, "stores tab not found", err)
	}
	if err := tab.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, eris.Wrapf(ErrScrapeFailed, "click stores tab for %q: %v", product, err)
	}

	if _, err := page.Timeout(s.opts.PageTimeout).Element(offersTableSelector); err != nil {
		return nil, s.explain(page, product, "offers table not found", err)
	}

	// the table fills in progressively after it first appears
	if err := sleepCtx(ctx, s.opts.SettleDelay); err != nil {
		return nil, eris.Wrapf(ErrScrapeFailed, "settle for %q: %v", product, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, eris.Wrapf(ErrScrapeFailed, "read html for %q: %v", product, err)
	}

	offers, err := ParseOffers(html)
	if err != nil {
		return nil, eris.Wrapf(ErrScrapeFailed, "%q: %v", product, err)
	}
	zap.L().Info("observed offers", zap.String("product", product), zap.Int("rows", len(offers)))
	return offers, nil
}

// pageBudget bounds one product: page open and load, two selector waits and
// the settle delay.
func (s *ShoppingScraper) pageBudget() time.Duration {
	return 4*s.opts.PageTimeout + s.opts.SettleDelay
}

// closePage closes the tab even when the product context has expired
func closePage(page *rod.Page) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := page.Context(ctx).Close(); err != nil {
		zap.L().Debug("failed to close page", zap.Error(err))
	}
}

func (s *ShoppingScraper) searchURL(product string) string {
	return s.opts.SearchURL + "?q=" + url.QueryEscape(product)
}

// explain upgrades a selector timeout to ErrBotWall when the page is a block page
func (s *ShoppingScraper) explain(page *rod.Page, product, what string, cause error) error {
	html, err := page.HTML()
	if err == nil {
		title := ""
		if info, err := page.Info(); err == nil {
			title = info.Title
		}
		if blocked, reason := s.botDetector.DetectBotWall(html, title); blocked {
			return eris.Wrapf(ErrBotWall, "%q: %s", product, reason)
		}
	}
	return eris.Wrapf(ErrScrapeFailed, "%q: %s: %v", product, what, cause)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
