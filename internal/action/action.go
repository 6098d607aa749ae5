// Package action defines the tagged-union Action model dispatched by the
// executor, plus the security validator that screens evaluate/JS and CSS
// payloads before they reach a page.
package action

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/browsercore/browsercore/internal/coreerr"
)

// Kind names one of the fourteen action variants.
type Kind string

const (
	KindNavigate   Kind = "navigate"
	KindClick      Kind = "click"
	KindType       Kind = "type"
	KindWait       Kind = "wait"
	KindEvaluate   Kind = "evaluate"
	KindScreenshot Kind = "screenshot"
	KindScroll     Kind = "scroll"
	KindSelect     Kind = "select"
	KindKeyboard   Kind = "keyboard"
	KindMouse      Kind = "mouse"
	KindPDF        Kind = "pdf"
	KindCookie     Kind = "cookie"
	KindContent    Kind = "content"
	KindClose      Kind = "close"
)

// Action is a tagged union over the fourteen variants. Exactly one of the
// variant pointer fields is non-nil, matching Type.
type Action struct {
	Type    Kind
	Timeout time.Duration

	Navigate   *NavigateParams
	Click      *ClickParams
	Type_      *TypeParams
	Wait       *WaitParams
	Evaluate   *EvaluateParams
	Screenshot *ScreenshotParams
	Scroll     *ScrollParams
	Select     *SelectParams
	Keyboard   *KeyboardParams
	Mouse      *MouseParams
	PDF        *PDFParams
	Cookie     *CookieParams
	Content    *ContentParams
	Close      *CloseParams
}

type envelope struct {
	Type    Kind            `json:"type"`
	Timeout int64           `json:"timeout,omitempty"` // milliseconds
	Params  json.RawMessage `json:"params"`
}

// NavigateParams navigates the page to a URL.
type NavigateParams struct {
	URL       string `json:"url"`
	WaitUntil string `json:"waitUntil,omitempty"`
}

// ClickParams clicks an element matching Selector.
type ClickParams struct {
	Selector   string `json:"selector"`
	Button     string `json:"button,omitempty"`
	ClickCount int    `json:"clickCount,omitempty"`
	Delay      int    `json:"delay,omitempty"`
}

// TypeParams types Text into an element matching Selector.
type TypeParams struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Delay    int    `json:"delay,omitempty"`
}

// WaitParams waits either for a selector to appear or a fixed duration.
type WaitParams struct {
	WaitType string `json:"waitType"`
	Selector string `json:"selector,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// EvaluateParams runs Function in the page with Args, security-checked
// before execution.
type EvaluateParams struct {
	Function string        `json:"function"`
	Args     []interface{} `json:"args,omitempty"`
}

// ScreenshotParams captures the page or viewport.
type ScreenshotParams struct {
	FullPage bool   `json:"fullPage,omitempty"`
	Format   string `json:"format,omitempty"`
	Quality  int    `json:"quality,omitempty"`
}

// ScrollParams scrolls the page by Distance in Direction.
type ScrollParams struct {
	Direction string `json:"direction"`
	Distance  int    `json:"distance"`
	Smooth    bool   `json:"smooth,omitempty"`
}

// SelectParams sets the selected option(s) of a <select> element.
type SelectParams struct {
	Selector string   `json:"selector"`
	Values   []string `json:"values"`
}

// KeyboardParams dispatches a single key press with optional modifiers.
type KeyboardParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// MouseParams dispatches a raw mouse action at (X, Y).
type MouseParams struct {
	Action string `json:"action"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// PDFParams renders the page to a PDF.
type PDFParams struct {
	Format          string `json:"format,omitempty"`
	Landscape       bool   `json:"landscape,omitempty"`
	PrintBackground bool   `json:"printBackground,omitempty"`
}

// CookieParams manages cookies in the page's browser context.
type CookieParams struct {
	Operation string                   `json:"operation"`
	Cookies   []map[string]interface{} `json:"cookies,omitempty"`
	Names     []string                 `json:"names,omitempty"`
}

// ContentParams reads the rendered HTML of the page or an element.
type ContentParams struct {
	Selector string `json:"selector,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
}

// CloseParams closes the page. It carries no fields of its own.
type CloseParams struct{}

// UnmarshalJSON dispatches on the "type" discriminator to decode only the
// matching Params struct.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode action envelope: %w", err)
	}
	a.Type = env.Type
	a.Timeout = time.Duration(env.Timeout) * time.Millisecond

	decode := func(v interface{}) error {
		if len(env.Params) == 0 {
			return nil
		}
		return json.Unmarshal(env.Params, v)
	}

	switch env.Type {
	case KindNavigate:
		a.Navigate = &NavigateParams{}
		return decode(a.Navigate)
	case KindClick:
		a.Click = &ClickParams{}
		return decode(a.Click)
	case KindType:
		a.Type_ = &TypeParams{}
		return decode(a.Type_)
	case KindWait:
		a.Wait = &WaitParams{}
		return decode(a.Wait)
	case KindEvaluate:
		a.Evaluate = &EvaluateParams{}
		return decode(a.Evaluate)
	case KindScreenshot:
		a.Screenshot = &ScreenshotParams{}
		return decode(a.Screenshot)
	case KindScroll:
		a.Scroll = &ScrollParams{}
		return decode(a.Scroll)
	case KindSelect:
		a.Select = &SelectParams{}
		return decode(a.Select)
	case KindKeyboard:
		a.Keyboard = &KeyboardParams{}
		return decode(a.Keyboard)
	case KindMouse:
		a.Mouse = &MouseParams{}
		return decode(a.Mouse)
	case KindPDF:
		a.PDF = &PDFParams{}
		return decode(a.PDF)
	case KindCookie:
		a.Cookie = &CookieParams{}
		return decode(a.Cookie)
	case KindContent:
		a.Content = &ContentParams{}
		return decode(a.Content)
	case KindClose:
		a.Close = &CloseParams{}
		return nil
	default:
		return fmt.Errorf("unknown action type %q", env.Type)
	}
}

var (
	validWaitUntil = map[string]bool{"load": true, "domcontentloaded": true, "networkidle0": true, "networkidle2": true}
	validButton    = map[string]bool{"left": true, "right": true, "middle": true}
	validFormat    = map[string]bool{"png": true, "jpeg": true, "webp": true}
	validDirection = map[string]bool{"up": true, "down": true, "left": true, "right": true}
	validCookieOp  = map[string]bool{"set": true, "get": true, "delete": true, "clear": true}
	validMouseAct  = map[string]bool{"move": true, "down": true, "up": true}
	validScheme    = map[string]bool{"http": true, "https": true, "about": true}
)

// Validate checks the structural rules for Action's variant, returning a
// coreerr.Invalid on the first violation found.
func (a *Action) Validate() error {
	switch a.Type {
	case KindNavigate:
		return validateNavigate(a.Navigate)
	case KindClick:
		return validateClick(a.Click)
	case KindType:
		return validateType(a.Type_)
	case KindWait:
		return validateWait(a.Wait)
	case KindEvaluate:
		return validateEvaluate(a.Evaluate)
	case KindScreenshot:
		return validateScreenshot(a.Screenshot)
	case KindScroll:
		return validateScroll(a.Scroll)
	case KindSelect:
		return validateSelect(a.Select)
	case KindKeyboard:
		return validateKeyboard(a.Keyboard)
	case KindMouse:
		return validateMouse(a.Mouse)
	case KindPDF:
		return validatePDF(a.PDF)
	case KindCookie:
		return validateCookie(a.Cookie)
	case KindContent:
		return nil // every field is optional
	case KindClose:
		return nil
	default:
		return coreerr.Newf(coreerr.Invalid, "unknown action type %q", a.Type)
	}
}

func validateNavigate(p *NavigateParams) error {
	if p == nil || p.URL == "" {
		return coreerr.New(coreerr.Invalid, "navigate requires url")
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return coreerr.Wrap(coreerr.Invalid, "navigate url does not parse", err)
	}
	if !validScheme[u.Scheme] {
		return coreerr.Newf(coreerr.Invalid, "navigate url scheme %q is not allowed", u.Scheme)
	}
	if p.WaitUntil != "" && !validWaitUntil[p.WaitUntil] {
		return coreerr.Newf(coreerr.Invalid, "navigate waitUntil %q is not recognized", p.WaitUntil)
	}
	return nil
}

func validateClick(p *ClickParams) error {
	if p == nil || p.Selector == "" {
		return coreerr.New(coreerr.Invalid, "click requires selector")
	}
	if p.Button != "" && !validButton[p.Button] {
		return coreerr.Newf(coreerr.Invalid, "click button %q is not recognized", p.Button)
	}
	if p.ClickCount != 0 && p.ClickCount < 1 {
		return coreerr.New(coreerr.Invalid, "click clickCount must be >= 1")
	}
	if p.Delay < 0 {
		return coreerr.New(coreerr.Invalid, "click delay must be >= 0")
	}
	return nil
}

func validateType(p *TypeParams) error {
	if p == nil || p.Selector == "" {
		return coreerr.New(coreerr.Invalid, "type requires selector")
	}
	if p.Delay < 0 {
		return coreerr.New(coreerr.Invalid, "type delay must be >= 0")
	}
	return nil
}

func validateWait(p *WaitParams) error {
	if p == nil {
		return coreerr.New(coreerr.Invalid, "wait requires waitType")
	}
	switch p.WaitType {
	case "selector":
		if p.Selector == "" {
			return coreerr.New(coreerr.Invalid, "wait{selector} requires selector")
		}
	case "timeout":
		if p.Duration < 0 {
			return coreerr.New(coreerr.Invalid, "wait{timeout} duration must be >= 0")
		}
	default:
		return coreerr.Newf(coreerr.Invalid, "wait waitType %q is not recognized", p.WaitType)
	}
	return nil
}

func validateEvaluate(p *EvaluateParams) error {
	if p == nil || p.Function == "" {
		return coreerr.New(coreerr.Invalid, "evaluate requires function")
	}
	// Run the security validator here, before Execute ever resolves a page,
	// so a rejected script never causes a browser to be leased.
	if v := ValidateJS(p.Function); !v.IsValid {
		return coreerr.New(coreerr.Security, firstIssueMessage(v)).WithRule(firstIssueRule(v))
	}
	if v := ValidateArgs(p.Args); !v.IsValid {
		return coreerr.New(coreerr.Security, firstIssueMessage(v)).WithRule(firstIssueRule(v))
	}
	return nil
}

func firstIssueMessage(v Verdict) string {
	if len(v.Issues) == 0 {
		return "security validator rejected the request"
	}
	return v.Issues[0].Message
}

func firstIssueRule(v Verdict) string {
	if len(v.Issues) == 0 {
		return ""
	}
	return v.Issues[0].Rule
}

func validateScreenshot(p *ScreenshotParams) error {
	if p == nil {
		return nil
	}
	if p.Format != "" && !validFormat[p.Format] {
		return coreerr.Newf(coreerr.Invalid, "screenshot format %q is not recognized", p.Format)
	}
	if p.Quality != 0 && p.Format != "jpeg" && p.Format != "webp" {
		return coreerr.New(coreerr.Invalid, "screenshot quality is only valid with jpeg or webp format")
	}
	return nil
}

func validateScroll(p *ScrollParams) error {
	if p == nil || !validDirection[p.Direction] {
		return coreerr.New(coreerr.Invalid, "scroll requires a valid direction")
	}
	if p.Distance < 0 {
		return coreerr.New(coreerr.Invalid, "scroll distance must be >= 0")
	}
	return nil
}

func validateSelect(p *SelectParams) error {
	if p == nil || p.Selector == "" {
		return coreerr.New(coreerr.Invalid, "select requires selector")
	}
	if len(p.Values) == 0 {
		return coreerr.New(coreerr.Invalid, "select requires at least one value")
	}
	return nil
}

func validateKeyboard(p *KeyboardParams) error {
	if p == nil || p.Key == "" {
		return coreerr.New(coreerr.Invalid, "keyboard requires key")
	}
	return nil
}

func validateMouse(p *MouseParams) error {
	if p == nil || !validMouseAct[p.Action] {
		return coreerr.New(coreerr.Invalid, "mouse requires a valid action")
	}
	return nil
}

func validatePDF(p *PDFParams) error {
	if p == nil {
		return nil
	}
	if p.Format != "" && p.Format != "letter" && p.Format != "a4" && p.Format != "legal" {
		return coreerr.Newf(coreerr.Invalid, "pdf format %q is not recognized", p.Format)
	}
	return nil
}

func validateCookie(p *CookieParams) error {
	if p == nil || !validCookieOp[p.Operation] {
		return coreerr.New(coreerr.Invalid, "cookie requires a valid operation")
	}
	if p.Operation == "set" && len(p.Cookies) == 0 {
		return coreerr.New(coreerr.Invalid, "cookie{set} requires cookies")
	}
	if p.Operation == "delete" && len(p.Names) == 0 {
		return coreerr.New(coreerr.Invalid, "cookie{delete} requires names")
	}
	return nil
}
