package action

import (
	"encoding/json"
	"testing"

	"github.com/browsercore/browsercore/internal/coreerr"
)

func TestUnmarshalJSONDecodesNavigate(t *testing.T) {
	var a Action
	raw := `{"type":"navigate","timeout":5000,"params":{"url":"https://example.com","waitUntil":"load"}}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if a.Type != KindNavigate {
		t.Fatalf("Type = %q, want navigate", a.Type)
	}
	if a.Navigate == nil || a.Navigate.URL != "https://example.com" {
		t.Fatalf("Navigate = %+v", a.Navigate)
	}
	if a.Timeout.Milliseconds() != 5000 {
		t.Fatalf("Timeout = %v, want 5s", a.Timeout)
	}
	if a.Click != nil {
		t.Fatal("expected other variant fields to stay nil")
	}
}

func TestUnmarshalJSONRejectsUnknownType(t *testing.T) {
	var a Action
	raw := `{"type":"teleport","params":{}}`
	if err := json.Unmarshal([]byte(raw), &a); err == nil {
		t.Fatal("expected an error for an unknown action type")
	}
}

func TestUnmarshalJSONDecodesClose(t *testing.T) {
	var a Action
	raw := `{"type":"close"}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if a.Close == nil {
		t.Fatal("expected Close to be set")
	}
}

func TestValidateNavigateRejectsDisallowedScheme(t *testing.T) {
	a := Action{Type: KindNavigate, Navigate: &NavigateParams{URL: "file:///etc/passwd"}}
	err := a.Validate()
	if err == nil {
		t.Fatal("expected file scheme to be rejected")
	}
	if coreerr.KindOf(err) != coreerr.Invalid {
		t.Fatalf("KindOf = %v, want Invalid", coreerr.KindOf(err))
	}
}

func TestValidateNavigateAcceptsHTTPS(t *testing.T) {
	a := Action{Type: KindNavigate, Navigate: &NavigateParams{URL: "https://example.com", WaitUntil: "networkidle0"}}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateClickRejectsUnknownButton(t *testing.T) {
	a := Action{Type: KindClick, Click: &ClickParams{Selector: "#go", Button: "banana"}}
	if err := a.Validate(); err == nil {
		t.Fatal("expected an unrecognized button to be rejected")
	}
}

func TestValidateWaitRequiresSelectorForSelectorType(t *testing.T) {
	a := Action{Type: KindWait, Wait: &WaitParams{WaitType: "selector"}}
	if err := a.Validate(); err == nil {
		t.Fatal("expected wait{selector} with no selector to be rejected")
	}
}

func TestValidateWaitAcceptsTimeoutType(t *testing.T) {
	a := Action{Type: KindWait, Wait: &WaitParams{WaitType: "timeout", Duration: 250}}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateScreenshotRejectsQualityWithoutJPEGOrWebp(t *testing.T) {
	a := Action{Type: KindScreenshot, Screenshot: &ScreenshotParams{Format: "png", Quality: 80}}
	if err := a.Validate(); err == nil {
		t.Fatal("expected quality with png format to be rejected")
	}
}

func TestValidateCookieSetRequiresCookies(t *testing.T) {
	a := Action{Type: KindCookie, Cookie: &CookieParams{Operation: "set"}}
	if err := a.Validate(); err == nil {
		t.Fatal("expected cookie{set} with no cookies to be rejected")
	}
}

func TestValidateCookieClearNeedsNoExtraFields(t *testing.T) {
	a := Action{Type: KindCookie, Cookie: &CookieParams{Operation: "clear"}}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateEvaluateRejectsDangerousPattern(t *testing.T) {
	a := Action{Type: KindEvaluate, Evaluate: &EvaluateParams{Function: "eval('2+2')"}}
	err := a.Validate()
	if err == nil {
		t.Fatal("expected eval() to be rejected by the security validator")
	}
	if coreerr.KindOf(err) != coreerr.Security {
		t.Fatalf("KindOf = %v, want Security", coreerr.KindOf(err))
	}
}

func TestValidateEvaluateAcceptsBenignFunction(t *testing.T) {
	a := Action{Type: KindEvaluate, Evaluate: &EvaluateParams{Function: "() => document.title"}}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateEvaluateRejectsTooManyArgs(t *testing.T) {
	a := Action{Type: KindEvaluate, Evaluate: &EvaluateParams{
		Function: "(x) => x",
		Args:     make([]interface{}, defaultMaxArgs+1),
	}}
	err := a.Validate()
	if err == nil {
		t.Fatal("expected too many evaluate args to be rejected")
	}
	if coreerr.KindOf(err) != coreerr.Security {
		t.Fatalf("KindOf = %v, want Security", coreerr.KindOf(err))
	}
}

func TestValidateContentAndCloseAlwaysPass(t *testing.T) {
	if err := (&Action{Type: KindContent, Content: &ContentParams{}}).Validate(); err != nil {
		t.Fatalf("content Validate: %v", err)
	}
	if err := (&Action{Type: KindClose, Close: &CloseParams{}}).Validate(); err != nil {
		t.Fatalf("close Validate: %v", err)
	}
}
