// Package statement retrieves uploaded bank statement files and turns them
// into text.  PDF text extraction is an external capability behind the
// Extractor interface; everything that is not a PDF is decoded as UTF-8.
package statement

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
)

// maxFileSize bounds statement downloads.  Bank statements are small; this
// guards against a hostile download URL.
const maxFileSize = 32 << 20 // 32 MiB

// Fetcher downloads a file by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// Extractor converts PDF bytes to plain text.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// HTTPFetcher fetches files over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("statement: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("statement: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("statement: fetch: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, "", fmt.Errorf("statement: read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// PDFToText extracts text by piping the document through the pdftotext
// binary.  The zero value uses "pdftotext" from PATH.
type PDFToText struct {
	Path string
}

func (p *PDFToText) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	bin := p.Path
	if bin == "" {
		bin = "pdftotext"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-", "-")
	cmd.Stdin = bytes.NewReader(pdf)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("statement: pdftotext: %w", err)
	}
	return out.String(), nil
}

// IsPDF reports whether a download looks like a PDF, by declared content
// type or by the URL's name suffix.
func IsPDF(contentType, url string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return strings.Contains(strings.ToLower(url), ".pdf")
}

// Reader combines fetching and extraction.
type Reader struct {
	Fetcher   Fetcher
	Extractor Extractor
}

// Text downloads the file at url and returns its textual content along with
// the declared content type.  PDFs go through the extractor; anything else
// is treated as UTF-8 text (CSV statements included).
func (r *Reader) Text(ctx context.Context, url string) (string, string, error) {
	data, contentType, err := r.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", "", err
	}
	if IsPDF(contentType, url) {
		text, err := r.Extractor.ExtractText(ctx, data)
		if err != nil {
			return "", contentType, err
		}
		return text, contentType, nil
	}
	return string(data), contentType, nil
}
