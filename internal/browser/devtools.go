package browser

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/config"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

var ErrTargetNotFound = errors.New("no matching browser tab")

// DevTools attaches to an already open tab over the Chrome DevTools protocol.
type DevTools struct {
	logger  zerolog.Logger
	timeout time.Duration

	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc

	mu      sync.Mutex
	queued  []dom.Mutation
	signal  chan struct{}
	batches chan dom.Batch
	done    chan struct{}

	closeOnce sync.Once
}

// Connect finds the first page tab whose URL contains cfg.TargetMatch and
// starts observing it.
func Connect(cfg config.BrowserConfig, opts dom.ObserveOptions, logger zerolog.Logger) (*DevTools, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), cfg.DevToolsURL)
	browserCtx, _ := chromedp.NewContext(allocCtx)

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		cancelAlloc()
		return nil, errors.Wrapf(err, "failed to list targets at %s", cfg.DevToolsURL)
	}

	info, err := pickTarget(infos, cfg.TargetMatch)
	if err != nil {
		cancelAlloc()
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))

	d := &DevTools{
		logger:      logger.With().Str("target", info.URL).Logger(),
		timeout:     cfg.RequestTimeout,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		signal:      make(chan struct{}, 1),
		batches:     make(chan dom.Batch, 8),
		done:        make(chan struct{}),
	}
	if d.timeout <= 0 {
		d.timeout = 5 * time.Second
	}

	chromedp.ListenTarget(tabCtx, d.onEvent)

	script := observerScript(opts)
	var installed bool
	err = chromedp.Run(tabCtx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		chromedp.Evaluate(script, &installed),
	)
	if err != nil {
		d.Close()
		return nil, errors.Wrap(err, "failed to install mutation observer")
	}

	go d.forward()

	d.logger.Info().Msg("attached to browser tab")
	return d, nil
}

func (d *DevTools) Document(ctx context.Context) (*dom.Document, error) {
	var html string
	if err := d.run(ctx, chromedp.Evaluate(snapshotScript(), &html)); err != nil {
		return nil, errors.Wrap(err, "failed to snapshot document")
	}
	return dom.ParseString(html)
}

func (d *DevTools) Mutations() <-chan dom.Batch {
	return d.batches
}

func (d *DevTools) HasFocus(ctx context.Context) (bool, error) {
	var focused bool
	err := d.run(ctx, chromedp.Evaluate(`document.hasFocus()`, &focused))
	return focused, errors.Wrap(err, "failed to query focus")
}

// Focus brings the observed tab to the front of its window.
func (d *DevTools) Focus(ctx context.Context) error {
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.BringToFront().Do(ctx)
	}))
	return errors.Wrap(err, "failed to bring tab to front")
}

// Close detaches from the tab without closing it and drops the connection.
func (d *DevTools) Close() error {
	d.closeOnce.Do(func() {
		if c := chromedp.FromContext(d.tabCtx); c != nil && c.Target != nil && c.Browser != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			detach := target.DetachFromTarget().WithSessionID(c.Target.SessionID)
			if err := detach.Do(cdp.WithExecutor(ctx, c.Browser)); err != nil {
				d.logger.Debug().Err(err).Msg("detach failed")
			}
			cancel()
			// A context still holding its target closes the tab when cancelled.
			c.Target = nil
		}
		d.cancelTab()
		d.cancelAlloc()
		close(d.done)
	})
	return nil
}

func (d *DevTools) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.tabCtx, d.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// onEvent runs on the protocol reader goroutine and must not block.
func (d *DevTools) onEvent(ev interface{}) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != bindingName {
		return
	}

	muts, err := decodeMutations(called.Payload)
	if err != nil {
		d.logger.Debug().Err(err).Msg("bad mutation payload")
		return
	}

	d.mu.Lock()
	d.queued = append(d.queued, muts...)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// forward turns queued mutations into batches, each with a fresh snapshot.
// Mutations arriving while a snapshot is taken join the next batch.
func (d *DevTools) forward() {
	defer close(d.batches)
	for {
		select {
		case <-d.done:
			return
		case <-d.signal:
		}

		d.mu.Lock()
		muts := d.queued
		d.queued = nil
		d.mu.Unlock()
		if len(muts) == 0 {
			continue
		}

		doc, err := d.Document(d.tabCtx)
		if err != nil {
			d.logger.Warn().Err(err).Int("mutations", len(muts)).Msg("dropping mutation batch")
			continue
		}

		select {
		case d.batches <- dom.Batch{Mutations: muts, Document: doc, ReceivedAt: time.Now()}:
		case <-d.done:
			return
		}
	}
}

func decodeMutations(payload string) ([]dom.Mutation, error) {
	var muts []dom.Mutation
	if err := json.Unmarshal([]byte(payload), &muts); err != nil {
		return nil, err
	}
	return muts, nil
}

func pickTarget(infos []*target.Info, match string) (*target.Info, error) {
	for _, info := range infos {
		if info.Type == "page" && strings.Contains(info.URL, match) {
			return info, nil
		}
	}
	return nil, errors.Wrapf(ErrTargetNotFound, "url containing %q", match)
}
