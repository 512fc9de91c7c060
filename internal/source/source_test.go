package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/podrun/podrun/internal/source"
)

func TestParseType(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"pdf", "url", "txt", "md", " PDF ", "Url"} {
		if _, err := source.ParseType(s); err != nil {
			t.Errorf("ParseType(%q) failed: %v", s, err)
		}
	}
	for _, s := range []string{"", "docx", "html"} {
		if _, err := source.ParseType(s); err == nil {
			t.Errorf("ParseType(%q) should fail", s)
		}
	}
}

func TestRead_TextFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "article.txt")
	if err := os.WriteFile(path, []byte("The quick brown fox."), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := source.Read(context.Background(), source.TypeTxt, path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "The quick brown fox." {
		t.Errorf("content = %q", got)
	}
}

func TestRead_MarkdownFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Title\n\nBody text."), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := source.Read(context.Background(), source.TypeMd, path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(got, "Body text.") {
		t.Errorf("content = %q", got)
	}
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := source.Read(context.Background(), source.TypeTxt, filepath.Join(t.TempDir(), "gone.txt")); err == nil {
		t.Fatal("Read of a missing file should fail")
	}
}

func TestRead_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("   \n\t\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := source.Read(context.Background(), source.TypeTxt, path); err == nil {
		t.Fatal("Read of a whitespace-only file should fail")
	}
}

func TestRead_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
			<style>body { color: red; }</style>
			<script>console.log("noise")</script>
		</head><body><article><p>Readable article text.</p></article></body></html>`))
	}))
	t.Cleanup(srv.Close)

	got, err := source.Read(context.Background(), source.TypeURL, srv.URL)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(got, "Readable article text.") {
		t.Errorf("content = %q; want the article text", got)
	}
	if strings.Contains(got, "console.log") || strings.Contains(got, "color: red") {
		t.Errorf("content should not contain script/style text: %q", got)
	}
}

func TestRead_URLNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	if _, err := source.Read(context.Background(), source.TypeURL, srv.URL); err == nil {
		t.Fatal("Read of a 404 URL should fail")
	}
}

func TestRead_URLUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately unreachable

	if _, err := source.Read(context.Background(), source.TypeURL, srv.URL); err == nil {
		t.Fatal("Read of an unreachable URL should fail")
	}
}
