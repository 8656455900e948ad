// Package readpdf extracts plain text from PDF documents so the agent
// can read papers it finds.
package readpdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	defaultTimeout = 60 * time.Second

	// maxPDFSize bounds downloads; arXiv papers are far smaller.
	maxPDFSize = 100 * 1024 * 1024
)

// Reader extracts text from PDFs fetched over HTTP or read from disk.
type Reader struct {
	httpClient *http.Client
}

// NewReader creates a PDF reader.
func NewReader(timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reader{httpClient: &http.Client{Timeout: timeout}}
}

// Extract returns the plain text of a PDF identified by URL or local
// file path. Pages are concatenated in order, separated by blank lines.
func (r *Reader) Extract(ctx context.Context, src string) (string, error) {
	data, err := r.load(ctx, src)
	if err != nil {
		return "", err
	}
	return extractText(data)
}

func (r *Reader) load(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return r.download(ctx, src)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read pdf file: %w", err)
	}
	return data, nil
}

func (r *Reader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download pdf: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFSize+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	if len(data) > maxPDFSize {
		return nil, fmt.Errorf("pdf exceeds %d byte limit", maxPDFSize)
	}
	return data, nil
}

func extractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Some pages fail to decode; the rest of the paper is
			// still useful.
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no extractable text in pdf")
	}
	return sb.String(), nil
}
