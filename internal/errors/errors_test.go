package errors

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "wrap error",
			code:    CodeInvalidWrapTarget,
			wantMsg: "Value cannot be wrapped",
			wantCat: CategoryWrap,
		},
		{
			name:    "delta error",
			code:    CodeOutOfRangeMutation,
			wantMsg: "Array mutation index out of range",
			wantCat: CategoryDelta,
		},
		{
			name:    "config error",
			code:    CodeConfigInvalid,
			wantMsg: "Invalid config file",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "scenario.yaml")
	if err.Message != `file "scenario.yaml" not found` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
}

func TestError_Error(t *testing.T) {
	err := New(CodeOutOfRangeMutation).WithDetail("index 7, length 3")
	want := "E002: Array mutation index out of range: index 7, length 3"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := Newf(CategoryCLI, "boom")
	if plain.Error() != "boom" {
		t.Errorf("Error() = %q, want boom", plain.Error())
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	sentinel := New(CodeInconsistentDeltaUsage)
	err := New(CodeInconsistentDeltaUsage).WithDetail("aux slot 3 reused")

	if !stderrors.Is(err, sentinel) {
		t.Error("errors with the same code should match")
	}
	if stderrors.Is(err, New(CodeOutOfRangeMutation)) {
		t.Error("errors with different codes should not match")
	}
	if stderrors.Is(Newf(CategoryCLI, "x"), Newf(CategoryCLI, "x")) {
		t.Error("uncoded errors should not match each other")
	}
}

func TestError_Wrap(t *testing.T) {
	inner := stderrors.New("disk on fire")
	err := New(CodeConfigInvalid).Wrap(inner)

	if !stderrors.Is(err, inner) {
		t.Error("wrapped error should be reachable through errors.Is")
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("Error() = %q, should mention wrapped error", err.Error())
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeConfigInvalid) != nil {
		t.Error("FromError(nil) should return nil")
	}

	orig := New(CodeInvalidKey)
	if FromError(orig, CodeConfigInvalid) != orig {
		t.Error("FromError should return *Error unchanged")
	}

	wrapped := FromError(stderrors.New("plain"), CodeConfigInvalid)
	if wrapped.Code != CodeConfigInvalid {
		t.Errorf("Code = %q, want %q", wrapped.Code, CodeConfigInvalid)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeInvalidWrapTarget).
		WithDetail("cannot wrap int").
		WithSuggestion("wrap a map[string]any")

	formatted := err.Format()
	for _, want := range []string{"E001", "Value cannot be wrapped", "cannot wrap int", "Hint:", "Learn more:"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format() missing %q:\n%s", want, formatted)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New(CodeInvalidKey).WithDetail(`"x" on seq`)
	want := `E007: Key not valid for container kind ("x" on seq)`
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}

	wrapped := FromError(stderrors.New("unknown flag: --x"), CodeUsage)
	want = "E121: Invalid command usage (unknown flag: --x)"
	if got := wrapped.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	json := New(CodeCascadeBudgetExceeded).FormatJSON()
	for _, want := range []string{`"code":"E006"`, `"category":"graph"`, `"message":"Derived run cascade exceeded budget"`} {
		if !strings.Contains(json, want) {
			t.Errorf("FormatJSON() = %s, missing %s", json, want)
		}
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("PrintError() = %q", buf.String())
	}
}

func TestGetTemplate(t *testing.T) {
	template, ok := GetTemplate(CodeObserverCallbackFailure)
	if !ok {
		t.Fatal("E005 should exist")
	}
	if template.Category != CategoryObserver {
		t.Errorf("Category = %q, want %q", template.Category, CategoryObserver)
	}

	if _, ok := GetTemplate("E999"); ok {
		t.Error("E999 should not exist")
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) != len(registry) {
		t.Fatalf("GetAllCodes() returned %d codes, want %d", len(codes), len(registry))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Errorf("codes not ascending at %d: %q then %q", i, codes[i-1], codes[i])
		}
	}
	if codes[0] != CodeInvalidWrapTarget || codes[len(codes)-1] != CodeUsage {
		t.Errorf("codes = %v", codes)
	}
}

func TestWrapText(t *testing.T) {
	if got := wrapText("short text", 100); len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}
	if got := wrapText("this is a longer text that should be wrapped", 20); len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}
	if got := wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}
