package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahryar908/researchy/pkg/config"
	"github.com/shahryar908/researchy/pkg/logging"
	"github.com/shahryar908/researchy/pkg/render"
)

var renderCmd = &cobra.Command{
	Use:   "render [file.tex]",
	Short: "Compile a LaTeX file to PDF",
	Long: `Compiles a LaTeX source file to PDF with tectonic and writes the
result to the configured output directory.

Example:
  researchy render paper.tex
  researchy render paper.tex --topic "attention survey"`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("topic", "", "topic used to name the output file (default: source filename)")
}

func runRender(cmd *cobra.Command, args []string) error {
	texPath := args[0]
	topic, _ := cmd.Flags().GetString("topic")

	latex, err := os.ReadFile(texPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", texPath, err)
	}

	if topic == "" {
		topic = strings.TrimSuffix(filepath.Base(texPath), filepath.Ext(texPath))
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	renderer, err := render.NewRenderer(render.Config{
		OutputDir:    cfg.Render.OutputDir,
		TectonicPath: cfg.Render.TectonicPath,
		Logger:       logging.New(logging.Options{Verbose: viper.GetBool("verbose")}),
	})
	if err != nil {
		return fmt.Errorf("setting up renderer: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Compiling %s...\n", texPath)

	result, err := renderer.Render(context.Background(), topic, string(latex), "", "")
	if err != nil {
		var rerr *render.RenderError
		if errors.As(err, &rerr) && rerr.Output != "" {
			fmt.Fprintln(os.Stderr, rerr.Output)
		}
		return fmt.Errorf("compilation failed: %w", err)
	}

	fmt.Printf("Wrote %s\n", result.Path)
	return nil
}
