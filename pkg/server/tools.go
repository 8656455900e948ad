package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/arxiv"
	"github.com/shahryar908/researchy/pkg/metrics"
	"github.com/shahryar908/researchy/pkg/readpdf"
	"github.com/shahryar908/researchy/pkg/render"
	"github.com/shahryar908/researchy/pkg/telemetry"
)

// ToolDeps are the domain clients the agent's tools are built over.
type ToolDeps struct {
	Arxiv    *arxiv.Client
	PDF      *readpdf.Reader
	Renderer *render.Renderer

	// Metrics and Tracer instrument invocations. Optional.
	Metrics *metrics.Metrics
	Tracer  *telemetry.Provider
}

// BuildRegistry assembles the agent's tool set: paper search, paper
// reading, and LaTeX rendering.
func BuildRegistry(deps ToolDeps) *agent.Registry {
	reg := agent.NewRegistry()
	if deps.Arxiv != nil {
		reg.Register(deps.instrumented(searchTool(deps.Arxiv)))
	}
	if deps.PDF != nil {
		reg.Register(deps.instrumented(readTool(deps.PDF)))
	}
	if deps.Renderer != nil {
		reg.Register(deps.instrumented(renderTool(deps.Renderer, deps.Metrics)))
	}
	return reg
}

// instrumented wraps a tool with metrics and tracing.
func (d ToolDeps) instrumented(t agent.Tool) agent.Tool {
	if d.Metrics == nil && d.Tracer == nil {
		return t
	}
	return &agent.FuncTool{
		ToolName:        t.Name(),
		ToolDescription: t.Description(),
		ToolParameters:  t.Parameters(),
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			if d.Tracer != nil {
				tctx, span := d.Tracer.StartTool(ctx, t.Name())
				defer span.End()
				ctx = tctx
			}
			out, err := t.Invoke(ctx, args)
			if d.Metrics != nil {
				d.Metrics.RecordTool(t.Name(), err)
			}
			return out, err
		},
	}
}

func searchTool(client *arxiv.Client) agent.Tool {
	return &agent.FuncTool{
		ToolName: "arxiv_search",
		ToolDescription: "Search arXiv for academic papers. Returns titles, authors, " +
			"summaries, and PDF links. The query must be plain keywords without " +
			"parentheses or quotes.",
		ToolParameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Keyword search query, e.g. 'graph neural networks'",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Number of papers to return (default 5)",
				},
			},
			"required": []string{"query"},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			maxResults := 0
			if n, ok := args["max_results"].(float64); ok {
				maxResults = int(n)
			}

			result, err := client.Search(ctx, query, maxResults)
			if err != nil {
				return "", err
			}
			if len(result.Entries) == 0 {
				return "", arxiv.ErrNoResults
			}

			out, err := json.Marshal(result.Entries)
			if err != nil {
				return "", fmt.Errorf("marshal search results: %w", err)
			}
			return string(out), nil
		},
	}
}

func readTool(reader *readpdf.Reader) agent.Tool {
	return &agent.FuncTool{
		ToolName: "read_pdf",
		ToolDescription: "Read a PDF paper and return its full text. Accepts a " +
			"PDF URL (such as an arXiv PDF link) or a local file path.",
		ToolParameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "PDF URL or local file path",
				},
			},
			"required": []string{"url"},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			if strings.TrimSpace(url) == "" {
				return "", fmt.Errorf("url is required")
			}
			return reader.Extract(ctx, url)
		},
	}
}

func renderTool(renderer *render.Renderer, m *metrics.Metrics) agent.Tool {
	return &agent.FuncTool{
		ToolName: agent.RenderToolName,
		ToolDescription: "Render a LaTeX document to PDF. Pass the complete LaTeX " +
			"source including documentclass. On compile errors the compiler " +
			"output is returned so the document can be fixed and retried.",
		ToolParameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic": map[string]any{
					"type":        "string",
					"description": "Short topic used to name the output file",
				},
				"latex_content": map[string]any{
					"type":        "string",
					"description": "Complete LaTeX document source",
				},
			},
			"required": []string{"topic", "latex_content"},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			topic, _ := args["topic"].(string)
			latex, _ := args["latex_content"].(string)
			userID, _ := args["user_id"].(string)
			userName, _ := args["user_name"].(string)

			res, err := renderer.Render(ctx, topic, latex, userID, userName)
			if err != nil {
				return "", err
			}
			if m != nil {
				m.PapersRendered.Inc()
			}
			return res.Path, nil
		},
	}
}
