package browser

import (
	"context"
	"fmt"
	log "log/slog"
	"net/url"

	"github.com/chromedp/chromedp"
)

const videoQuery = `(document.querySelector('video.html5-main-video') || document.querySelector('video'))`

// ChromeDriver implements Driver and SearchOracle on top of a chromedp
// browser. Tabs are chromedp contexts; the last opened tab holds focus.
type ChromeDriver struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	tabs []tab
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeDriver launches the browser. The ctx bounds the browser's whole
// lifetime, not a single call.
func NewChromeDriver(ctx context.Context, headless bool) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("mute-audio", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	log.Info("Chrome driver initialised", "headless", headless)
	return &ChromeDriver{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// current returns the focused tab context, falling back to the browser's
// initial target.
func (d *ChromeDriver) current() context.Context {
	if len(d.tabs) == 0 {
		return d.browserCtx
	}
	return d.tabs[len(d.tabs)-1].ctx
}

func (d *ChromeDriver) OpenTab(ctx context.Context, target string) error {
	tabCtx, cancel := chromedp.NewContext(d.browserCtx)
	if err := chromedp.Run(tabCtx, chromedp.Navigate(target)); err != nil {
		cancel()
		return Transient(fmt.Errorf("open tab: %w", err))
	}
	d.tabs = append(d.tabs, tab{ctx: tabCtx, cancel: cancel})
	return nil
}

func (d *ChromeDriver) CloseTab(ctx context.Context) (int, error) {
	if len(d.tabs) == 0 {
		return 0, nil
	}
	last := d.tabs[len(d.tabs)-1]
	last.cancel()
	d.tabs = d.tabs[:len(d.tabs)-1]
	return len(d.tabs), nil
}

func (d *ChromeDriver) Quit(ctx context.Context) error {
	for _, t := range d.tabs {
		t.cancel()
	}
	d.tabs = nil
	d.browserCancel()
	d.allocCancel()
	return nil
}

func (d *ChromeDriver) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := d.eval(ctx, videoQuery+`.paused`, &paused)
	return paused, err
}

func (d *ChromeDriver) Play(ctx context.Context) error {
	return d.eval(ctx, `void `+videoQuery+`.play()`, nil)
}

func (d *ChromeDriver) Pause(ctx context.Context) error {
	return d.eval(ctx, videoQuery+`.pause()`, nil)
}

func (d *ChromeDriver) Toggle(ctx context.Context) error {
	script := `(() => { const v = ` + videoQuery + `; v.paused ? v.play() : v.pause(); })()`
	return d.eval(ctx, script, nil)
}

func (d *ChromeDriver) Next(ctx context.Context) error {
	return d.eval(ctx, `document.querySelector('.ytp-next-button')?.click()`, nil)
}

func (d *ChromeDriver) Previous(ctx context.Context) error {
	return d.eval(ctx, `document.querySelector('.ytp-prev-button')?.click()`, nil)
}

func (d *ChromeDriver) PlayerReady(ctx context.Context) (bool, error) {
	var ready bool
	err := d.eval(ctx, `!!document.getElementById('movie_player')`, &ready)
	return ready, err
}

func (d *ChromeDriver) eval(ctx context.Context, script string, res any) error {
	tabCtx := d.current()
	var err error
	if res == nil {
		err = chromedp.Run(tabCtx, chromedp.Evaluate(script, nil))
	} else {
		err = chromedp.Run(tabCtx, chromedp.Evaluate(script, res))
	}
	if err != nil {
		return Transient(fmt.Errorf("evaluate: %w", err))
	}
	return nil
}

const searchScript = `
Array.from(document.querySelectorAll('ytd-video-renderer a#video-title'))
  .slice(0, %d)
  .map(a => ({title: a.title || a.textContent.trim(), watchUrl: a.href}))
`

// Search scrapes the results page in a scratch tab.
func (d *ChromeDriver) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	searchURL := "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)

	tabCtx, cancel := chromedp.NewContext(d.browserCtx)
	defer cancel()

	var raw []struct {
		Title    string `json:"title"`
		WatchURL string `json:"watchUrl"`
	}
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(`ytd-video-renderer`, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(searchScript, limit), &raw),
	)
	if err != nil {
		return nil, Transient(fmt.Errorf("search %q: %w", query, err))
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.WatchURL == "" {
			continue
		}
		results = append(results, Result{Title: r.Title, WatchURL: r.WatchURL})
	}
	return results, nil
}
