// Package browserpool manages a fixed-size set of warm headless-Chrome
// instances (§4.4). Grounded on three independent chromedp users in the
// retrieved pack (AbhyudayPatel-Webshot's core/shotlink.go,
// ternarybob-quaero, nickheyer-Crepes): the same headless-Chrome flag
// set and the same bounded-channel acquire/release idiom as Webshot's
// workerPool chan *chromeWorker / getWorker(timeout) / releaseWorker.
package browserpool

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

// Browser is one pooled headless-Chrome allocator. A job's browser
// context (cookies, storage, recording) is opened fresh against
// allocCtx for every Acquire and discarded at Release — only the
// underlying Chrome process is reused.
type Browser struct {
	id       int
	allocCtx context.Context
	cancel   context.CancelFunc
}

func (b *Browser) AllocContext() context.Context { return b.allocCtx }

func (b *Browser) alive() bool {
	return b.allocCtx.Err() == nil
}

// Pool exposes Acquire/Release per §4.4. The invariant it upholds: pool
// size is stable across browser deaths — every Release either returns a
// browser or schedules a replacement, so the set of in-flight browsers
// is bounded by size + in-flight replacements.
type Pool struct {
	log            *logger.Logger
	size           int
	acquireTimeout time.Duration
	warmupPages    int

	avail chan *Browser

	mu     sync.Mutex
	nextID int
	closed bool
}

func New(log *logger.Logger, size int, acquireTimeout time.Duration, warmupPages int) *Pool {
	return &Pool{
		log:            log.With("component", "BrowserPool"),
		size:           size,
		acquireTimeout: acquireTimeout,
		warmupPages:    warmupPages,
		avail:          make(chan *Browser, size),
	}
}

// Start creates `size` browsers and warms `warmupPages` of them against
// about:blank to force first-use costs before accepting traffic (§4.4).
func (p *Pool) Start(ctx context.Context) error {
	for i := 0; i < p.size; i++ {
		b := p.createBrowser()
		if i < p.warmupPages {
			if err := warm(ctx, b); err != nil {
				p.log.Warn("browser warmup failed", "browser_id", b.id, "error", err)
			}
		}
		p.avail <- b
	}
	p.log.Info("browser pool started", "size", p.size, "warmed", p.warmupPages)
	return nil
}

func (p *Pool) createBrowser() *Browser {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.mu.Unlock()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "site-per-process,TranslateUI,BlinkGenPropertyTrees"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{id: id, allocCtx: allocCtx, cancel: cancel}
}

func warm(ctx context.Context, b *Browser) error {
	tctx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	tctx, timeoutCancel := context.WithTimeout(tctx, 15*time.Second)
	defer timeoutCancel()
	return chromedp.Run(tctx, chromedp.Navigate("about:blank"))
}

// Acquire blocks (bounded by the pool's acquireTimeout, or the caller's
// context) until a browser is free, failing BrowserUnavailable on
// timeout per §4.4 and the error taxonomy of §7.
func (p *Pool) Acquire(ctx context.Context) (*Browser, error) {
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()
	select {
	case b, ok := <-p.avail:
		if !ok {
			return nil, apierr.BrowserUnavailable(errPoolClosed)
		}
		return b, nil
	case <-timer.C:
		return nil, apierr.BrowserUnavailable(errAcquireTimeout)
	case <-ctx.Done():
		return nil, apierr.BrowserUnavailable(ctx.Err())
	}
}

// Release returns a browser to the pool if it passes a liveness check,
// otherwise closes it and schedules a replacement asynchronously so pool
// size never shrinks.
func (p *Pool) Release(b *Browser) {
	if b == nil {
		return
	}
	if b.alive() {
		p.returnToPool(b)
		return
	}
	p.log.Warn("releasing dead browser, scheduling replacement", "browser_id", b.id)
	b.cancel()
	go p.replace()
}

func (p *Pool) returnToPool(b *Browser) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		b.cancel()
		return
	}
	select {
	case p.avail <- b:
	default:
		// Pool channel is full — shouldn't happen since every Acquire is
		// paired with exactly one Release, but don't block the caller.
		p.log.Warn("browser pool channel full on release", "browser_id", b.id)
	}
}

func (p *Pool) replace() {
	b := p.createBrowser()
	p.returnToPool(b)
}

func (p *Pool) Available() int {
	return len(p.avail)
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	close(p.avail)
	for b := range p.avail {
		b.cancel()
	}
}

type poolErr string

func (e poolErr) Error() string { return string(e) }

const (
	errPoolClosed     = poolErr("browser pool closed")
	errAcquireTimeout = poolErr("timed out waiting for an available browser")
)
