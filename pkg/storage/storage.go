// Package storage persists rendered PDFs to Supabase Storage. Objects
// are keyed userID/filename so each user only sees their own papers.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBucket is the storage bucket holding rendered papers.
	DefaultBucket = "researchy"

	defaultTimeout = 30 * time.Second

	// maxObjectSize caps uploads at 50MB, matching the bucket policy.
	maxObjectSize = 50 * 1024 * 1024
)

// Object describes one stored file.
type Object struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config holds Supabase storage configuration.
type Config struct {
	// URL is the Supabase project URL.
	URL string

	// ServiceKey is the service-role key. Uploads and bucket admin
	// require it.
	ServiceKey string

	// Bucket overrides the default bucket name.
	Bucket string

	// Timeout for storage requests.
	Timeout time.Duration
}

// Client talks to the Supabase Storage REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a storage client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("storage URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("storage service key is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EnsureBucket creates the papers bucket if it does not already exist.
// The bucket is private and restricted to PDFs.
func (c *Client) EnsureBucket(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"id":                 c.cfg.Bucket,
		"name":               c.cfg.Bucket,
		"public":             false,
		"file_size_limit":    maxObjectSize,
		"allowed_mime_types": []string{"application/pdf"},
	})
	if err != nil {
		return fmt.Errorf("marshal bucket config: %w", err)
	}

	url := c.cfg.URL + "/storage/v1/bucket"
	resp, err := c.do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(body), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		// Bucket already exists.
		return nil
	case http.StatusBadRequest:
		// Supabase reports duplicates as 400 with a Duplicate code.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if strings.Contains(string(raw), "Duplicate") || strings.Contains(string(raw), "already exists") {
			return nil
		}
		return fmt.Errorf("create bucket: status %d: %s", resp.StatusCode, raw)
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("create bucket: status %d: %s", resp.StatusCode, raw)
	}
}

// UploadPDF stores a rendered PDF under userID/filename, replacing any
// existing object with the same key.
func (c *Client) UploadPDF(ctx context.Context, userID, filename string, data []byte) error {
	if len(data) > maxObjectSize {
		return fmt.Errorf("pdf exceeds %d byte limit", maxObjectSize)
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.cfg.URL, c.cfg.Bucket, objectKey(userID, filename))
	resp, err := c.do(ctx, http.MethodPost, url, "application/pdf", bytes.NewReader(data), map[string]string{
		"x-upsert": "true",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload %s: status %d: %s", filename, resp.StatusCode, raw)
	}
	return nil
}

// DownloadPDF fetches a stored PDF.
func (c *Client) DownloadPDF(ctx context.Context, userID, filename string) ([]byte, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.cfg.URL, c.cfg.Bucket, objectKey(userID, filename))
	resp, err := c.do(ctx, http.MethodGet, url, "", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("pdf %s not found", filename)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download %s: status %d: %s", filename, resp.StatusCode, raw)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}

// ListUserPDFs returns the objects stored under a user's prefix.
func (c *Client) ListUserPDFs(ctx context.Context, userID string) ([]Object, error) {
	body, err := json.Marshal(map[string]any{
		"prefix": userID,
		"limit":  1000,
		"sortBy": map[string]string{"column": "updated_at", "order": "desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal list request: %w", err)
	}

	url := fmt.Sprintf("%s/storage/v1/object/list/%s", c.cfg.URL, c.cfg.Bucket)
	resp, err := c.do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list objects: status %d: %s", resp.StatusCode, raw)
	}

	var objects []Object
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("parse object list: %w", err)
	}
	return objects, nil
}

// DeletePDF removes a stored PDF.
func (c *Client) DeletePDF(ctx context.Context, userID, filename string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.cfg.URL, c.cfg.Bucket, objectKey(userID, filename))
	resp, err := c.do(ctx, http.MethodDelete, url, "", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delete %s: status %d: %s", filename, resp.StatusCode, raw)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader, extra map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	req.Header.Set("apikey", c.cfg.ServiceKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func objectKey(userID, filename string) string {
	return userID + "/" + filename
}
