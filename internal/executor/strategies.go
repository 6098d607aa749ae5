package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/browsercore/browsercore/internal/action"
	"github.com/browsercore/browsercore/internal/coreerr"
	"github.com/browsercore/browsercore/internal/pageman"
)

func marshalData(v interface{}) (json.RawMessage, error) {
	return json.Marshal(v)
}

func ctxTimer(ctx context.Context, ms int) <-chan time.Time {
	if ms <= 0 {
		ms = 0
	}
	return time.After(time.Duration(ms) * time.Millisecond)
}

func runNavigate(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Navigate
	actions := []chromedp.Action{chromedp.Navigate(params.URL)}
	switch params.WaitUntil {
	case "", "load":
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	case "domcontentloaded":
		// Navigate already blocks until DOMContentLoaded fires.
	case "networkidle0", "networkidle2":
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	var title string
	actions = append(actions, chromedp.Title(&title))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return nil, nil, fmt.Errorf("navigate to %s: %w", params.URL, err)
	}

	data, err := marshalData(map[string]string{"url": params.URL, "title": title})
	return data, map[string]any{"url": params.URL}, err
}

func runClick(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Click
	count := params.ClickCount
	if count < 1 {
		count = 1
	}

	// chromedp.Click only ever dispatches a left single click, so a
	// non-default button or click count goes through raw mouse events
	// against the element's bounding rect, the same pattern the pool
	// visitor uses for human-like mouse movement.
	if params.Button == "" || params.Button == "left" {
		if count == 1 {
			if err := chromedp.Run(ctx, chromedp.Click(params.Selector, chromedp.ByQuery)); err != nil {
				return nil, nil, fmt.Errorf("click %s: %w", params.Selector, err)
			}
			data, err := marshalData(map[string]any{"selector": params.Selector})
			return data, map[string]any{"selector": params.Selector}, err
		}
	}

	btn := input.Left
	switch params.Button {
	case "right":
		btn = input.Right
	case "middle":
		btn = input.Middle
	}

	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var rect struct {
			X, Y, Width, Height float64
		}
		script := fmt.Sprintf(`(function(){var el=document.querySelector(%q); var r=el.getBoundingClientRect(); return {X:r.left+r.width/2, Y:r.top+r.height/2, Width:r.width, Height:r.height};})()`, params.Selector)
		if err := chromedp.Evaluate(script, &rect).Do(ctx); err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := input.DispatchMouseEvent(input.MousePressed, rect.X, rect.Y).WithButton(btn).WithClickCount(1).Do(ctx); err != nil {
				return err
			}
			if err := input.DispatchMouseEvent(input.MouseReleased, rect.X, rect.Y).WithButton(btn).WithClickCount(1).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})); err != nil {
		return nil, nil, fmt.Errorf("click %s: %w", params.Selector, err)
	}

	data, err := marshalData(map[string]any{"selector": params.Selector, "button": params.Button, "clickCount": count})
	return data, map[string]any{"selector": params.Selector}, err
}

func runType(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Type_
	if err := chromedp.Run(ctx,
		chromedp.Focus(params.Selector, chromedp.ByQuery),
		chromedp.SendKeys(params.Selector, params.Text, chromedp.ByQuery),
	); err != nil {
		return nil, nil, fmt.Errorf("type into %s: %w", params.Selector, err)
	}

	data, err := marshalData(map[string]any{"selector": params.Selector, "length": len(params.Text)})
	return data, map[string]any{"selector": params.Selector}, err
}

func runWait(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Wait
	switch params.WaitType {
	case "selector":
		if err := chromedp.Run(ctx, chromedp.WaitVisible(params.Selector, chromedp.ByQuery)); err != nil {
			return nil, nil, fmt.Errorf("wait for %s: %w", params.Selector, err)
		}
	case "timeout":
		select {
		case <-ctxTimer(ctx, params.Duration):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	data, err := marshalData(map[string]any{"waitType": params.WaitType})
	return data, nil, err
}

func runEvaluate(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Evaluate

	// a.Validate() already ran ValidateJS/ValidateArgs before Execute ever
	// resolved a page; DeepCloneArgs here only isolates the strategy's copy.
	args, err := action.DeepCloneArgs(params.Args)
	if err != nil {
		return nil, nil, fmt.Errorf("clone evaluate args: %w", err)
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal evaluate args: %w", err)
	}
	expr := fmt.Sprintf("(%s).apply(null, %s)", params.Function, argsJSON)

	var result interface{}
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &result)); err != nil {
		return nil, nil, fmt.Errorf("evaluate: %w", err)
	}

	data, err := marshalData(result)
	return data, nil, err
}

func runScreenshot(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Screenshot
	var buf []byte
	var err error
	if params != nil && params.FullPage {
		err = chromedp.Run(ctx, chromedp.FullScreenshot(&buf, qualityOrDefault(params)))
	} else {
		err = chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("screenshot: %w", err)
	}

	data, err := marshalData(buf)
	meta := map[string]any{"type": "image", "size": len(buf)}
	return data, meta, err
}

func qualityOrDefault(p *action.ScreenshotParams) int {
	if p.Quality > 0 {
		return p.Quality
	}
	return 90
}

func runScroll(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Scroll
	dx, dy := 0, 0
	switch params.Direction {
	case "up":
		dy = -params.Distance
	case "down":
		dy = params.Distance
	case "left":
		dx = -params.Distance
	case "right":
		dx = params.Distance
	}
	behavior := "auto"
	if params.Smooth {
		behavior = "smooth"
	}
	script := fmt.Sprintf(`window.scrollBy({left:%d, top:%d, behavior:'%s'})`, dx, dy, behavior)
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return nil, nil, fmt.Errorf("scroll: %w", err)
	}
	data, err := marshalData(map[string]any{"dx": dx, "dy": dy})
	return data, nil, err
}

func runSelect(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Select
	if err := chromedp.Run(ctx, chromedp.SetValue(params.Selector, firstOrEmpty(params.Values), chromedp.ByQuery)); err != nil {
		return nil, nil, fmt.Errorf("select on %s: %w", params.Selector, err)
	}
	data, err := marshalData(map[string]any{"selector": params.Selector, "values": params.Values})
	return data, map[string]any{"selector": params.Selector}, err
}

func firstOrEmpty(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func runKeyboard(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Keyboard
	if err := chromedp.Run(ctx, chromedp.KeyEvent(params.Key)); err != nil {
		return nil, nil, fmt.Errorf("keyboard %s: %w", params.Key, err)
	}
	data, err := marshalData(map[string]any{"key": params.Key, "modifiers": params.Modifiers})
	return data, nil, err
}

func runMouse(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Mouse
	var eventType input.MouseType
	switch params.Action {
	case "down":
		eventType = input.MousePressed
	case "up":
		eventType = input.MouseReleased
	default:
		eventType = input.MouseMoved
	}

	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(eventType, float64(params.X), float64(params.Y)).
			WithButton(input.Left).
			Do(ctx)
	})); err != nil {
		return nil, nil, fmt.Errorf("mouse %s at (%d,%d): %w", params.Action, params.X, params.Y, err)
	}

	data, err := marshalData(map[string]any{"action": params.Action, "x": params.X, "y": params.Y})
	return data, nil, err
}

func runPDF(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.PDF
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		opts := page.PrintToPDF().WithLandscape(params != nil && params.Landscape)
		if params != nil {
			opts = opts.WithPrintBackground(params.PrintBackground)
		}
		var err error
		buf, _, err = opts.Do(ctx)
		return err
	})); err != nil {
		return nil, nil, fmt.Errorf("render pdf: %w", err)
	}

	data, err := marshalData(buf)
	meta := map[string]any{"type": "pdf", "size": len(buf)}
	return data, meta, err
}

func runCookie(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Cookie
	switch params.Operation {
	case "get":
		var cookies []*network.Cookie
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		})); err != nil {
			return nil, nil, fmt.Errorf("get cookies: %w", err)
		}
		data, err := marshalData(cookies)
		return data, nil, err

	case "set":
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range params.Cookies {
				name, _ := c["name"].(string)
				value, _ := c["value"].(string)
				setter := network.SetCookie(name, value)
				if domain, ok := c["domain"].(string); ok {
					setter = setter.WithDomain(domain)
				}
				if path, ok := c["path"].(string); ok {
					setter = setter.WithPath(path)
				}
				if err := setter.Do(ctx); err != nil {
					return err
				}
			}
			return nil
		})); err != nil {
			return nil, nil, fmt.Errorf("set cookies: %w", err)
		}
		data, err := marshalData(map[string]any{"set": len(params.Cookies)})
		return data, nil, err

	case "delete":
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			for _, name := range params.Names {
				if err := network.DeleteCookies(name).Do(ctx); err != nil {
					return err
				}
			}
			return nil
		})); err != nil {
			return nil, nil, fmt.Errorf("delete cookies: %w", err)
		}
		data, err := marshalData(map[string]any{"deleted": params.Names})
		return data, nil, err

	case "clear":
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.ClearBrowserCookies().Do(ctx)
		})); err != nil {
			return nil, nil, fmt.Errorf("clear cookies: %w", err)
		}
		data, err := marshalData(map[string]any{"cleared": true})
		return data, nil, err
	}

	return nil, nil, coreerr.Newf(coreerr.Invalid, "unhandled cookie operation %q", params.Operation)
}

func runContent(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	params := a.Content
	var html string
	var err error
	if params != nil && params.Selector != "" {
		err = chromedp.Run(ctx, chromedp.OuterHTML(params.Selector, &html, chromedp.ByQuery))
	} else {
		err = chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read content: %w", err)
	}

	data, err := marshalData(html)
	return data, map[string]any{"length": len(html)}, err
}

func runClose(ctx context.Context, p *pageman.Page, a *action.Action) (json.RawMessage, map[string]any, error) {
	data, err := marshalData(map[string]any{"closed": true})
	return data, nil, err
}
