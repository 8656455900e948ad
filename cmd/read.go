package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahryar908/researchy/pkg/config"
	"github.com/shahryar908/researchy/pkg/readpdf"
)

var readCmd = &cobra.Command{
	Use:   "read [url|file]",
	Short: "Extract the text of a PDF",
	Long: `Downloads a PDF (or opens a local file) and prints its text content.

Example:
  researchy read https://arxiv.org/pdf/1706.03762
  researchy read paper.pdf --limit 2000
  researchy read https://arxiv.org/pdf/1706.03762 --save attention.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().String("save", "", "keep the downloaded PDF at this path")
	readCmd.Flags().Int("limit", 0, "max characters of text to print (0 = all)")
}

func runRead(cmd *cobra.Command, args []string) error {
	src := args[0]
	savePath, _ := cmd.Flags().GetString("save")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	local := src
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		local, err = downloadPDF(ctx, src, savePath, cfg.Arxiv.Timeout)
		if err != nil {
			return err
		}
		if savePath == "" {
			defer os.Remove(local)
		}
	} else if savePath != "" {
		return fmt.Errorf("--save only applies to URLs")
	}

	reader := readpdf.NewReader(cfg.Arxiv.Timeout)
	text, err := reader.Extract(ctx, local)
	if err != nil {
		return fmt.Errorf("could not read PDF: %w", err)
	}

	if limit > 0 && len(text) > limit {
		text = text[:limit] + "..."
	}
	fmt.Println(text)
	return nil
}

// downloadPDF fetches url to dest (a temp file when dest is empty) with a
// progress bar on stderr, returning the local path.
func downloadPDF(ctx context.Context, url, dest string, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	var f *os.File
	if dest != "" {
		f, err = os.Create(dest)
	} else {
		name := path.Base(req.URL.Path)
		if name == "" || name == "/" || name == "." {
			name = "paper"
		}
		f, err = os.CreateTemp("", name+"-*.pdf")
	}
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	bar := progressbar.NewOptions64(
		resp.ContentLength,
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	if _, err := io.Copy(io.MultiWriter(f, bar), resp.Body); err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	return f.Name(), nil
}
