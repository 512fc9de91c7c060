// Package source extracts plain text from the supported content sources:
// local PDF, text, and markdown files, and remote web pages.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Type names a supported content source kind.
type Type string

const (
	TypePDF Type = "pdf"
	TypeURL Type = "url"
	TypeTxt Type = "txt"
	TypeMd  Type = "md"
)

// Types lists every supported source type.
func Types() []Type {
	return []Type{TypePDF, TypeURL, TypeTxt, TypeMd}
}

// ParseType validates a user-supplied source type string.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypePDF, TypeURL, TypeTxt, TypeMd:
		return t, nil
	}
	return "", fmt.Errorf("source: invalid type %q; must be one of: pdf, url, txt, md", s)
}

// fetchTimeout bounds one remote page download.
const fetchTimeout = 10 * time.Second

// Read extracts the text content of the source at path (a file path, or a URL
// for TypeURL).
func Read(ctx context.Context, t Type, path string) (string, error) {
	var (
		content string
		err     error
	)
	switch t {
	case TypePDF:
		content, err = readPDF(path)
	case TypeURL:
		content, err = readURL(ctx, path)
	case TypeTxt, TypeMd:
		content, err = readFile(path)
	default:
		return "", fmt.Errorf("source: invalid type %q", t)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("source: no text content in %s source %q", t, path)
	}
	return content, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("source: read %s: %w", path, err)
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("source: open pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("source: extract pdf text %s: %w", path, err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("source: extract pdf text %s: %w", path, err)
	}
	return b.String(), nil
}

func readURL(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("source: build request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("source: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source: fetch %s: unexpected status %s", url, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("source: parse html from %s: %w", url, err)
	}
	// Scripts and styles contribute no readable text.
	doc.Find("script, style, noscript").Remove()
	return doc.Text(), nil
}
