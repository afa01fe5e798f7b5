package naming

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackzampolin/docket/internal/providers"
)

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"leading ordinal", "3 - Motion Draft", "Motion_Draft"},
		{"parenthetical version", "3 - Motion Draft (v2)", "Motion_Draft"},
		{"leading dotted date", "1.15.23 - Declaration of Smith", "Declaration_of_Smith"},
		{"leading iso date", "2023-01-15 - Order Granting", "Order_Granting"},
		{"embedded dotted date", "Notice filed 1.15.23 final", "Notice_filed_final"},
		{"bracketed email", "Letter [smith@example.com] Re Discovery", "Letter_Re_Discovery"},
		{"google sheets export", "Damages Summary - Google Sheets", "Damages_Summary"},
		{"double dash", "Reply - - Motion to Compel", "Reply_Motion_to_Compel"},
		{"date prefix passthrough", "20230115_Motion_to_Compel", "20230115_Motion_to_Compel"},
		{"multi space collapse", "Order   Denying    Stay", "Order_Denying_Stay"},
		{"edge underscores", " - Proof of Service - ", "Proof_of_Service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanFileName(tt.input)
			if got != tt.want {
				t.Errorf("CleanFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDateFromFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"1.15.23 - Declaration", "20230115", true},
		{"Notice 12.3.24 served", "20241203", true},
		{"2023-01-15 - Order", "20230115", true},
		{"Motion to Compel", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := DateFromFileName(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DateFromFileName(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsCompilation(t *testing.T) {
	for _, name := range []string{"Ex. P12 through P20", "Trial Exhibit Binder", "ex. p3"} {
		if !IsCompilation(name) {
			t.Errorf("IsCompilation(%q) = false, want true", name)
		}
	}
	if IsCompilation("Motion to Compel") {
		t.Error("IsCompilation matched a plain motion title")
	}
}

func TestResolver(t *testing.T) {
	t.Run("filename date wins without metadata call", func(t *testing.T) {
		mock := providers.NewMockProvider()
		r := NewResolver(mock, nil)

		got := r.Resolve(context.Background(), "1.15.23 - Declaration of Smith", "some page text")
		if got != "20230115_Declaration_of_Smith" {
			t.Errorf("Resolve = %q", got)
		}
		if len(mock.MetadataCalls) != 0 {
			t.Errorf("metadata called %d times, want 0", len(mock.MetadataCalls))
		}
	})

	t.Run("compilation skips date entirely", func(t *testing.T) {
		mock := providers.NewMockProvider()
		r := NewResolver(mock, nil)

		got := r.Resolve(context.Background(), "Ex. P12 Compendium", "page text")
		if got != "RR_Ex._P12_Compendium" {
			t.Errorf("Resolve = %q", got)
		}
		if len(mock.MetadataCalls) != 0 {
			t.Errorf("metadata called %d times, want 0", len(mock.MetadataCalls))
		}
	})

	t.Run("existing date prefix passes through", func(t *testing.T) {
		r := NewResolver(nil, nil)
		got := r.Resolve(context.Background(), "20230115_Motion_to_Compel", "")
		if got != "20230115_Motion_to_Compel" {
			t.Errorf("Resolve = %q", got)
		}
	})

	t.Run("inferred date prefixes the cleaned name", func(t *testing.T) {
		mock := providers.NewMockProvider()
		mock.MetadataFunc = func(_ context.Context, _ string) (*providers.DocumentMetadata, error) {
			return &providers.DocumentMetadata{Date: "20240301", Description: "motion"}, nil
		}
		r := NewResolver(mock, nil)

		got := r.Resolve(context.Background(), "Motion to Compel", "SUPERIOR COURT ... March 1, 2024")
		if got != "20240301_Motion_to_Compel" {
			t.Errorf("Resolve = %q", got)
		}
	})

	t.Run("inference failure degrades to undated name", func(t *testing.T) {
		mock := providers.NewMockProvider()
		mock.MetadataFunc = func(_ context.Context, _ string) (*providers.DocumentMetadata, error) {
			return nil, fmt.Errorf("model unavailable")
		}
		r := NewResolver(mock, nil)

		got := r.Resolve(context.Background(), "Motion to Compel", "page text")
		if got != "Motion_to_Compel" {
			t.Errorf("Resolve = %q", got)
		}
	})

	t.Run("malformed inferred date is ignored", func(t *testing.T) {
		mock := providers.NewMockProvider()
		mock.MetadataFunc = func(_ context.Context, _ string) (*providers.DocumentMetadata, error) {
			return &providers.DocumentMetadata{Date: "March 2024"}, nil
		}
		r := NewResolver(mock, nil)

		got := r.Resolve(context.Background(), "Motion to Compel", "page text")
		if got != "Motion_to_Compel" {
			t.Errorf("Resolve = %q", got)
		}
	})

	t.Run("long samples are truncated", func(t *testing.T) {
		mock := providers.NewMockProvider()
		r := NewResolver(mock, nil)

		long := make([]byte, 5000)
		for i := range long {
			long[i] = 'a'
		}
		r.Resolve(context.Background(), "Motion to Compel", string(long))
		if len(mock.MetadataCalls) != 1 {
			t.Fatalf("metadata called %d times, want 1", len(mock.MetadataCalls))
		}
		if len(mock.MetadataCalls[0]) != metadataSampleLen {
			t.Errorf("sample length = %d, want %d", len(mock.MetadataCalls[0]), metadataSampleLen)
		}
	})
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()

	first := d.Unique("20230115_Motion_r.pdf", "_r", ".pdf")
	if first != "20230115_Motion_r.pdf" {
		t.Errorf("first = %q", first)
	}

	second := d.Unique("20230115_Motion_r.pdf", "_r", ".pdf")
	if second != "20230115_Motion_2_r.pdf" {
		t.Errorf("second = %q", second)
	}

	third := d.Unique("20230115_Motion_r.pdf", "_r", ".pdf")
	if third != "20230115_Motion_3_r.pdf" {
		t.Errorf("third = %q", third)
	}

	t.Run("claimed names collide", func(t *testing.T) {
		d := NewDeduper()
		d.Claim("Order_r.pdf")
		got := d.Unique("Order_r.pdf", "_r", ".pdf")
		if got != "Order_2_r.pdf" {
			t.Errorf("got %q", got)
		}
	})
}
