package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skigaudi/skibot/internal/log"
)

func TestAccepts(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		want        bool
	}{
		{"pdf extension", "schedule.pdf", "", true},
		{"txt extension", "notes.txt", "", true},
		{"md extension", "README.md", "", true},
		{"uppercase extension", "SCHEDULE.PDF", "", true},
		{"pdf mime only", "upload", "application/pdf", true},
		{"text mime with charset", "upload", "text/plain; charset=utf-8", true},
		{"markdown mime", "upload", "text/markdown", true},
		{"docx rejected", "schedule.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", false},
		{"png rejected", "map.png", "image/png", false},
		{"no signals", "upload", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accepts(tt.fileName, tt.contentType); got != tt.want {
				t.Errorf("Accepts(%q, %q) = %v, want %v", tt.fileName, tt.contentType, got, tt.want)
			}
		})
	}
}

func TestText_PlainText(t *testing.T) {
	e := New(log.NewNop())

	got, err := e.Text(context.Background(), []byte("  Lift opens at 9.\n"), "info.txt", "")
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if got != "Lift opens at 9." {
		t.Errorf("Text() = %q, want trimmed content", got)
	}
}

func TestText_Markdown(t *testing.T) {
	e := New(log.NewNop())

	src := "# Festival\n\nThe party starts **Friday**."
	got, err := e.Text(context.Background(), []byte(src), "festival.md", "text/markdown")
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if !strings.Contains(got, "Friday") {
		t.Errorf("Text() = %q, want markdown passthrough", got)
	}
}

func TestText_UnsupportedFormat(t *testing.T) {
	e := New(log.NewNop())

	_, err := e.Text(context.Background(), []byte("data"), "slides.pptx", "application/octet-stream")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Text() = %v, want ErrUnsupportedFormat", err)
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	e := New(log.NewNop())

	_, err := e.Text(context.Background(), []byte{0xff, 0xfe, 0xfd}, "broken.txt", "")
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("Text() = %v, want ErrInvalidEncoding", err)
	}
}

func TestText_EmptyDocument(t *testing.T) {
	e := New(log.NewNop())

	_, err := e.Text(context.Background(), []byte("   \n\t "), "blank.txt", "")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("Text() = %v, want ErrEmptyDocument", err)
	}
}

func TestText_InvalidPDFBytes(t *testing.T) {
	e := New(log.NewNop())

	_, err := e.Text(context.Background(), []byte("not a pdf"), "broken.pdf", "application/pdf")
	if err == nil {
		t.Fatal("expected error for malformed PDF bytes")
	}
}
