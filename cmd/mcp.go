package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/arxiv"
	"github.com/shahryar908/researchy/pkg/cache"
	"github.com/shahryar908/researchy/pkg/config"
	"github.com/shahryar908/researchy/pkg/logging"
	"github.com/shahryar908/researchy/pkg/readpdf"
	"github.com/shahryar908/researchy/pkg/render"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start Researchy as an MCP server",
	Long: `Starts Researchy as a Model Context Protocol (MCP) server.

This exposes the research tools directly to AI assistants like Claude,
Amp, and Cursor, without going through the chat agent.

Transports:
  stdio (default) - For local desktop apps (Claude Desktop, Cursor)
  http            - For remote/cloud deployments (hosted MCP server)

Tools exposed:
  arxiv_search       - Search arXiv for papers on a topic
  read_pdf           - Extract text from a PDF by URL or path
  render_latex_pdf   - Compile LaTeX source to a PDF

Resources exposed:
  researchy://system-prompt - The research agent's system prompt

Example:
  # Local stdio server (Claude Desktop, Cursor, Amp)
  researchy mcp

  # Remote HTTP server (hosted deployment)
  researchy mcp --transport http --port 8081

Configure in Claude Desktop (claude_desktop_config.json):
  {
    "mcpServers": {
      "researchy": {
        "command": "researchy",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")
}

// researchTools bundles the tool implementations behind the MCP surface.
type researchTools struct {
	arxiv    *arxiv.Client
	pdf      *readpdf.Reader
	renderer *render.Renderer
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyEnvFallbacks(cfg)

	logger := logging.New(logging.Options{Verbose: viper.GetBool("verbose")})

	tools := &researchTools{
		arxiv: arxiv.NewClient(arxiv.Config{
			BaseURL:    cfg.Arxiv.BaseURL,
			Timeout:    cfg.Arxiv.Timeout,
			MaxResults: cfg.Arxiv.MaxResults,
			CacheTTL:   cfg.Arxiv.CacheTTL,
			Cache:      cache.NewMemoryCache(cache.DefaultConfig()),
			Logger:     logger,
		}),
		pdf: readpdf.NewReader(cfg.Arxiv.Timeout),
	}

	renderer, err := render.NewRenderer(render.Config{
		OutputDir:    cfg.Render.OutputDir,
		TectonicPath: cfg.Render.TectonicPath,
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("LaTeX rendering unavailable", "error", err)
	} else {
		tools.renderer = renderer
	}

	s := server.NewMCPServer(
		"Researchy",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(false),
	)

	tools.registerTools(s)
	tools.registerResources(s)
	tools.registerPrompts(s)

	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("Researchy MCP server starting on http://%s\n", addr)
		fmt.Printf("  Endpoint: http://%s/mcp\n", addr)
		fmt.Printf("  Health:   http://%s/health\n", addr)
		fmt.Println()

		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok","server":"researchy-mcp"}`))
		})

		// MCP endpoint with stateful sessions
		mcpHandler := server.NewStreamableHTTPServer(s, server.WithStateful(true))
		mux.Handle("/mcp", mcpHandler)

		httpServer := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		if err := httpServer.ListenAndServe(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s (use 'stdio' or 'http')", transport)
	}

	return nil
}

func (t *researchTools) registerTools(s *server.MCPServer) {
	searchTool := mcp.NewTool("arxiv_search",
		mcp.WithDescription(`Search arXiv for academic papers on a topic.

Returns titles, authors, abstracts, categories, and PDF links for the
most relevant recent papers. Use read_pdf on a result's PDF link to read
the full paper.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The research topic or keywords to search for"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of papers to return (default: 5)"),
		),
	)

	s.AddTool(searchTool, t.handleArxivSearch)

	readTool := mcp.NewTool("read_pdf",
		mcp.WithDescription(`Extract the text content of a PDF document.

Accepts an http(s) URL (e.g. an arXiv PDF link from arxiv_search) or a
local file path. Returns the plain text of every page.`),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL or local path of the PDF to read"),
		),
	)

	s.AddTool(readTool, t.handleReadPDF)

	if t.renderer != nil {
		renderTool := mcp.NewTool(agent.RenderToolName,
			mcp.WithDescription(`Compile a LaTeX document into a PDF.

The source must be a complete, standalone LaTeX document. The compiled
PDF is written to the configured output directory and its filename is
returned.`),
			mcp.WithString("topic",
				mcp.Required(),
				mcp.Description("Short topic of the document, used to name the output file"),
			),
			mcp.WithString("latex_content",
				mcp.Required(),
				mcp.Description("Complete LaTeX source to compile"),
			),
		)

		s.AddTool(renderTool, t.handleRenderLatex)
	}
}

func (t *researchTools) handleArxivSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	maxResults := int(request.GetFloat("max_results", 0))

	result, err := t.arxiv.Search(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(result.Entries) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no papers found for %q", query)), nil
	}

	resultJSON, _ := json.MarshalIndent(result.Entries, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (t *researchTools) handleReadPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	text, err := t.pdf.Extract(ctx, src)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("could not read PDF: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

func (t *researchTools) handleRenderLatex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := request.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError("topic parameter is required"), nil
	}
	latex, err := request.RequireString("latex_content")
	if err != nil {
		return mcp.NewToolResultError("latex_content parameter is required"), nil
	}

	result, err := t.renderer.Render(ctx, topic, latex, "", "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}

	return mcp.NewToolResultText(result.Path), nil
}

func (t *researchTools) registerResources(s *server.MCPServer) {
	systemPrompt := mcp.NewResource(
		"researchy://system-prompt",
		"Researchy System Prompt",
		mcp.WithResourceDescription("System prompt that guides the research agent's tool use"),
		mcp.WithMIMEType("text/plain"),
	)

	s.AddResource(systemPrompt, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "researchy://system-prompt",
				MIMEType: "text/plain",
				Text:     agent.SystemPrompt(""),
			},
		}, nil
	})

	configResource := mcp.NewResource(
		"researchy://config",
		"Researchy Configuration",
		mcp.WithResourceDescription("Current research tool configuration"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		info := map[string]interface{}{
			"rendering_available": t.renderer != nil,
			"tools":               []string{"arxiv_search", "read_pdf"},
		}
		if t.renderer != nil {
			info["tools"] = []string{"arxiv_search", "read_pdf", agent.RenderToolName}
		}
		infoJSON, _ := json.MarshalIndent(info, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "researchy://config",
				MIMEType: "application/json",
				Text:     string(infoJSON),
			},
		}, nil
	})
}

func (t *researchTools) registerPrompts(s *server.MCPServer) {
	surveyPrompt := mcp.NewPrompt(
		"survey-topic",
		mcp.WithPromptDescription("Survey recent arXiv papers on a topic and summarize the findings"),
		mcp.WithArgument("topic", mcp.ArgumentDescription("The research topic to survey")),
	)

	s.AddPrompt(surveyPrompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		topic := request.Params.Arguments["topic"]

		return &mcp.GetPromptResult{
			Description: "Survey recent papers on a topic",
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.TextContent{
						Type: "text",
						Text: fmt.Sprintf(`I want a survey of recent research on: %s

Please:
1. Call arxiv_search to find recent papers on the topic
2. Pick the two or three most relevant results and call read_pdf on their PDF links
3. Summarize the main findings, noting where the papers agree and disagree
4. Cite each paper by title when you reference it`, topic),
					},
				},
			},
		}, nil
	})
}
