package yelp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

const (
	browserTimeout = 90 * time.Second
	maxScrolls     = 10
	scrollPause    = 2 * time.Second
)

func (c *Client) fetchBrowser(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if c.renderer == nil {
		return nil, fmt.Errorf("browser disabled: %w", signal.ErrSkipped)
	}
	pageURL, err := c.businessURL(ctx, id)
	if err != nil {
		return nil, err
	}
	page, err := c.renderer.Render(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return parseBusinessPage([]byte(page), pageURL, c.pageLimit)
}

// ChromeRenderer renders pages in a local headless Chrome, scrolling until
// the page stops growing so lazily loaded reviews are present.
type ChromeRenderer struct {
	logger   *slog.Logger
	cookies  map[string]string
	headless bool
}

// NewChromeRenderer creates a renderer. Cookies are set on the review-site
// domain before navigation.
func NewChromeRenderer(logger *slog.Logger, cookies map[string]string) *ChromeRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{logger: logger, cookies: cookies, headless: true}
}

// Render navigates to pageURL and returns the document HTML after scrolling.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.UserAgent(httpcache.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer cancelBrowser()

	var doc string
	err := chromedp.Run(browserCtx,
		chromedp.ActionFunc(r.setCookies),
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(r.scroll),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	r.logger.DebugContext(ctx, "rendered page", "url", pageURL, "bytes", len(doc))
	return doc, nil
}

func (r *ChromeRenderer) setCookies(ctx context.Context) error {
	domain := "." + auth.Domain(auth.Yelp)
	for name, value := range r.cookies {
		if name == auth.KeyAPI || name == "" || value == "" {
			continue
		}
		if err := network.SetCookie(name, value).WithDomain(domain).WithPath("/").Do(ctx); err != nil {
			return fmt.Errorf("set cookie %s: %w", name, err)
		}
	}
	return nil
}

func (r *ChromeRenderer) scroll(ctx context.Context) error {
	var prev float64
	for range maxScrolls {
		var height float64
		if err := chromedp.Evaluate(`window.scrollBy(0, document.body.scrollHeight), document.body.scrollHeight`, &height).Do(ctx); err != nil {
			return err
		}
		if height == prev {
			return nil
		}
		prev = height
		if err := chromedp.Sleep(scrollPause).Do(ctx); err != nil {
			return err
		}
	}
	return nil
}
