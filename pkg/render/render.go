// Package render compiles LaTeX documents to PDF with tectonic and
// fans the result out: local output directory, object storage, the
// backend's paper metadata endpoint, and the local index. Only the
// compile itself is fatal; every downstream step is best effort.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/shahryar908/researchy/pkg/papers"
	"github.com/shahryar908/researchy/pkg/storage"
)

const (
	defaultOutputDir     = "output"
	defaultNotifyTimeout = 5 * time.Second

	// maxTopicLen bounds the sanitized topic part of filenames.
	maxTopicLen = 60
)

// RenderError reports a failed LaTeX compile, carrying the compiler
// output so the agent can fix the document and retry.
type RenderError struct {
	Output string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("latex compilation failed: %v\n%s", e.Err, e.Output)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Result describes a successfully rendered paper.
type Result struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Topic    string `json:"topic"`
}

// Config holds renderer configuration.
type Config struct {
	// OutputDir receives .tex sources and compiled PDFs.
	OutputDir string

	// TectonicPath overrides the compiler binary looked up on PATH.
	TectonicPath string

	// BackendURL, when set, receives paper metadata notifications.
	BackendURL string

	// NotifyTimeout bounds the metadata notification request.
	NotifyTimeout time.Duration

	// Storage, when set, receives a copy of each rendered PDF.
	Storage *storage.Client

	// Index, when set, records each render.
	Index *papers.Index

	// Logger for best-effort step failures. Optional.
	Logger *slog.Logger

	// Now is the clock used for filename timestamps.
	Now func() time.Time
}

// Renderer compiles LaTeX to PDF.
type Renderer struct {
	cfg        Config
	httpClient *http.Client
}

// NewRenderer creates a renderer. It fails if the tectonic binary
// cannot be found.
func NewRenderer(cfg Config) (*Renderer, error) {
	if cfg.TectonicPath == "" {
		path, err := exec.LookPath("tectonic")
		if err != nil {
			return nil, fmt.Errorf("tectonic not found on PATH: %w", err)
		}
		cfg.TectonicPath = path
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &Renderer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.NotifyTimeout},
	}, nil
}

// OutputDir returns the directory rendered PDFs land in.
func (r *Renderer) OutputDir() string { return r.cfg.OutputDir }

// Render compiles latex to a PDF named after topic. On success the PDF
// is uploaded, announced to the backend, and indexed; failures in those
// steps are logged and the local result still returned.
func (r *Renderer) Render(ctx context.Context, topic, latex, userID, userName string) (Result, error) {
	if strings.TrimSpace(latex) == "" {
		return Result{}, fmt.Errorf("latex content is empty")
	}

	base := fmt.Sprintf("%s_%d", sanitizeTopic(topic), r.cfg.Now().Unix())
	texPath := filepath.Join(r.cfg.OutputDir, base+".tex")
	pdfPath := filepath.Join(r.cfg.OutputDir, base+".pdf")

	if err := os.WriteFile(texPath, []byte(latex), 0o644); err != nil {
		return Result{}, fmt.Errorf("write tex source: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.cfg.TectonicPath, texPath, "--outdir", r.cfg.OutputDir)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return Result{}, &RenderError{Output: output.String(), Err: err}
	}

	if _, err := os.Stat(pdfPath); err != nil {
		return Result{}, &RenderError{Output: output.String(), Err: fmt.Errorf("pdf not produced: %w", err)}
	}

	result := Result{Filename: base + ".pdf", Path: pdfPath, Topic: topic}
	r.distribute(ctx, result, userID)
	return result, nil
}

// distribute fans a rendered paper out to storage, the backend, and
// the index.
func (r *Renderer) distribute(ctx context.Context, res Result, userID string) {
	var supabasePath string
	if r.cfg.Storage != nil && userID != "" {
		data, err := os.ReadFile(res.Path)
		if err == nil {
			err = r.cfg.Storage.UploadPDF(ctx, userID, res.Filename, data)
		}
		if err != nil {
			r.cfg.Logger.Warn("paper upload failed", "filename", res.Filename, "error", err)
		} else {
			supabasePath = userID + "/" + res.Filename
		}
	}

	if r.cfg.BackendURL != "" && userID != "" {
		if err := r.notifyMetadata(ctx, res, userID, supabasePath); err != nil {
			r.cfg.Logger.Warn("paper metadata notification failed", "filename", res.Filename, "error", err)
		}
	}

	if r.cfg.Index != nil {
		err := r.cfg.Index.Record(ctx, papers.Paper{
			Topic:     res.Topic,
			Filename:  res.Filename,
			Path:      res.Path,
			UserID:    userID,
			CreatedAt: r.cfg.Now().UTC(),
		})
		if err != nil {
			r.cfg.Logger.Warn("paper index update failed", "filename", res.Filename, "error", err)
		}
	}
}

// notifyMetadata reports a rendered paper to the backend. supabasePath
// is empty when the upload did not happen; the backend receives null.
func (r *Renderer) notifyMetadata(ctx context.Context, res Result, userID, supabasePath string) error {
	title := res.Topic
	if title == "" {
		title = "Research Paper"
	}
	var fileSize int64
	if info, err := os.Stat(res.Path); err == nil {
		fileSize = info.Size()
	}

	payload := map[string]any{
		"user_id":       userID,
		"filename":      res.Filename,
		"title":         title,
		"supabase_path": nil,
		"file_size":     fileSize,
	}
	if supabasePath != "" {
		payload["supabase_path"] = supabasePath
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	url := r.cfg.BackendURL + "/api/research/papers/metadata"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-internal-request", "true")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return nil
}

// sanitizeTopic turns a free-text topic into a safe filename stem:
// lowercased, runs of non-alphanumerics collapsed to single
// underscores, truncated.
func sanitizeTopic(topic string) string {
	var sb strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(topic) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			sb.WriteByte('_')
			lastUnderscore = true
		}
		if sb.Len() >= maxTopicLen {
			break
		}
	}

	s := strings.Trim(sb.String(), "_")
	if s == "" {
		return "paper"
	}
	return s
}
