package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	ee := Newf("deposition %d rejected", 42).
		Component("zenodo").
		Category(CategoryDeposition).
		Priority(PriorityHigh).
		Context("deposition_id", 42).
		Build()

	if ee.GetComponent() != "zenodo" {
		t.Errorf("Expected component 'zenodo', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryDeposition {
		t.Errorf("Expected category deposition, got '%s'", ee.Category)
	}
	if ee.GetPriority() != PriorityHigh {
		t.Errorf("Expected priority high, got '%s'", ee.GetPriority())
	}
	if got := ee.GetContext()["deposition_id"]; got != 42 {
		t.Errorf("Expected deposition_id 42 in context, got %v", got)
	}
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).Priority("urgent!!").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("Expected fallback priority medium, got '%s'", ee.GetPriority())
	}
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryNotFound).Build()
	b := New(NewStd("b")).Category(CategoryNotFound).Build()

	if !Is(a, b) {
		t.Error("Expected errors with the same category to match via Is")
	}
	if !IsNotFound(a) {
		t.Error("Expected IsNotFound to report true for CategoryNotFound")
	}
	if IsCategory(a, CategoryDatabase) {
		t.Error("Expected IsCategory to report false for a different category")
	}
}

func TestUnwrapPreservesSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("record not found")
	ee := New(fmt.Errorf("lookup failed: %w", sentinel)).Category(CategoryDatabase).Build()

	if !Is(ee, sentinel) {
		t.Error("Expected wrapped sentinel to be matched through the enhanced error")
	}
}

func TestFileContextCategorization(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("short read")).FileContext("/media/uploads/clip.wav", 2*1024*1024).Build()
	ctx := ee.GetContext()

	if ctx["file_extension"] != "wav" {
		t.Errorf("Expected file_extension 'wav', got %v", ctx["file_extension"])
	}
	if ctx["file_size_category"] != "medium" {
		t.Errorf("Expected file_size_category 'medium', got %v", ctx["file_size_category"])
	}
}

func TestBasicURLScrub(t *testing.T) {
	t.Parallel()

	scrubbed := basicURLScrub("Error at https://zenodo.org/api/deposit?access_token=secret123")
	if strings.Contains(scrubbed, "secret123") {
		t.Errorf("Expected token to be scrubbed, got: %s", scrubbed)
	}

	scrubbed = basicURLScrub("Config error: password=hunter2 is invalid")
	if strings.Contains(scrubbed, "hunter2") {
		t.Errorf("Expected password to be scrubbed, got: %s", scrubbed)
	}
}
