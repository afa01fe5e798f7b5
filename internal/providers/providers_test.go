package providers

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nhello\n```", "hello"},
		{"```markdown\n# Title\n```", "# Title"},
		{"  \n```text\nbody\n```\n ", "body"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitTranscription(t *testing.T) {
	t.Run("splits and trims", func(t *testing.T) {
		text := "@@PAGE@@\nfirst page\n@@PAGE@@\nsecond page\n"
		pages, err := splitTranscription(text, 2)
		if err != nil {
			t.Fatal(err)
		}
		if pages[0] != "first page" || pages[1] != "second page" {
			t.Errorf("pages = %q", pages)
		}
	})

	t.Run("drops preamble before the first token", func(t *testing.T) {
		text := "Sure, here is the transcription:\n@@PAGE@@\nonly page"
		pages, err := splitTranscription(text, 1)
		if err != nil {
			t.Fatal(err)
		}
		if pages[0] != "only page" {
			t.Errorf("pages = %q", pages)
		}
	})

	t.Run("wrong page count fails", func(t *testing.T) {
		if _, err := splitTranscription("@@PAGE@@\none", 3); err == nil {
			t.Error("accepted a short transcription")
		}
	})

	t.Run("empty response fails", func(t *testing.T) {
		if _, err := splitTranscription("  \n", 1); err == nil {
			t.Error("accepted an empty transcription")
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"not-a-number", 0},
		{"-3", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateMetadataJSON(t *testing.T) {
	valid := `{"date":"20230115","party":"Smith","case":"Smith v. Jones","description":"Order"}`
	if err := ValidateMetadataJSON([]byte(valid)); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}
	undated := `{"date":"","party":"","case":"","description":"Exhibit"}`
	if err := ValidateMetadataJSON([]byte(undated)); err != nil {
		t.Errorf("empty date rejected: %v", err)
	}

	bad := []string{
		`{"date":"January 15","party":"","case":"","description":""}`,
		`{"date":"20230115"}`,
		`{"date":"20230115","party":"","case":"","description":"","extra":true}`,
		`not json`,
	}
	for _, in := range bad {
		if err := ValidateMetadataJSON([]byte(in)); err == nil {
			t.Errorf("ValidateMetadataJSON(%q) accepted invalid input", in)
		}
	}
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(1000)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewRateLimiter(0.001)
	slow.Record429()
	if err := slow.Wait(cancelled); err == nil {
		t.Error("Wait() ignored a cancelled context")
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	e := &RateLimitError{Message: "rate limited", RetryAfter: 2 * time.Second, StatusCode: 429}
	if !strings.Contains(e.Error(), "retry after") {
		t.Errorf("Error() = %q", e.Error())
	}
	bare := &RateLimitError{Message: "rate limited"}
	if bare.Error() != "rate limited" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	mock := NewMockProvider()
	reg.RegisterCorrector("mock", mock)

	if _, err := reg.Corrector("mock"); err != nil {
		t.Errorf("Corrector(mock) error = %v", err)
	}
	if _, err := reg.Corrector("missing"); err == nil {
		t.Error("Corrector(missing) did not error")
	}
	if !reg.HasCorrector("mock") || reg.HasCorrector("missing") {
		t.Error("HasCorrector wrong")
	}
	if _, err := reg.VisionExtractor(); err == nil {
		t.Error("VisionExtractor() did not error when unset")
	}
	reg.SetVisionExtractor(mock)
	if _, err := reg.VisionExtractor(); err != nil {
		t.Errorf("VisionExtractor() error = %v", err)
	}
}
