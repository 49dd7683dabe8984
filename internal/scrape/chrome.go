package scrape

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultNetworkIdleWait = 5 * time.Second

type ChromeOptions struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// NetworkIdleWait bounds how long to wait for network activity to settle
	// after the body is ready. Reaching it is not an error.
	NetworkIdleWait time.Duration
	NoSandbox       bool
}

// ChromeRenderer launches a fresh headless Chrome for every Render call and
// shuts it down before returning.
type ChromeRenderer struct {
	allocatorOptions []chromedp.ExecAllocatorOption
	networkIdleWait  time.Duration
}

func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	allocatorOptions := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOptions = append(allocatorOptions, chromedp.Headless, chromedp.DisableGPU)
	if opts.NoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(opts.ExecPath))
	}
	wait := opts.NetworkIdleWait
	if wait <= 0 {
		wait = defaultNetworkIdleWait
	}
	return &ChromeRenderer{allocatorOptions: allocatorOptions, networkIdleWait: wait}
}

func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var mainFrame atomic.Value
	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || e.Name != "networkIdle" {
			return
		}
		if frame, _ := mainFrame.Load().(string); frame == "" || frame != string(e.FrameID) {
			return
		}
		select {
		case idle <- struct{}{}:
		default:
		}
	})

	var text string
	err := chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		recordMainFrame(&mainFrame),
		drain(idle),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitForSignal(idle, r.networkIdleWait),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	if err != nil {
		return "", err
	}
	return CollapseWhitespace(text), nil
}

// recordMainFrame stores the page target id, which is also the id of its
// top-level frame.
func recordMainFrame(frame *atomic.Value) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if c := chromedp.FromContext(ctx); c != nil && c.Target != nil {
			frame.Store(string(c.Target.TargetID))
		}
		return nil
	}
}

// drain drops lifecycle signals left over from the initial blank page.
func drain(ch chan struct{}) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ch:
			default:
				return nil
			}
		}
	}
}

func waitForSignal(ch <-chan struct{}, limit time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		select {
		case <-ch:
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
}
