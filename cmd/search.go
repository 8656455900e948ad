package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahryar908/researchy/pkg/arxiv"
	"github.com/shahryar908/researchy/pkg/config"
	"github.com/shahryar908/researchy/pkg/logging"
)

var searchCmd = &cobra.Command{
	Use:   "search [topic]",
	Short: "Search arXiv for papers on a topic",
	Long: `Searches arXiv and displays matching papers with their abstracts
and PDF links.

Example:
  researchy search "graph neural networks"
  researchy search --max-results 10 --json transformer interpretability`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntP("max-results", "k", 0, "maximum number of papers to return")
	searchCmd.Flags().Bool("json", false, "output raw JSON instead of formatted text")
	searchCmd.Flags().Int("abstract-limit", 300, "max characters of abstract to show per paper")
}

func runSearch(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	maxResults, _ := cmd.Flags().GetInt("max-results")
	asJSON, _ := cmd.Flags().GetBool("json")
	abstractLimit, _ := cmd.Flags().GetInt("abstract-limit")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := arxiv.NewClient(arxiv.Config{
		BaseURL:    cfg.Arxiv.BaseURL,
		Timeout:    cfg.Arxiv.Timeout,
		MaxResults: cfg.Arxiv.MaxResults,
		Logger:     logging.New(logging.Options{Verbose: viper.GetBool("verbose")}),
	})

	fmt.Fprintf(os.Stderr, "Searching arXiv for %q...\n", topic)

	result, err := client.Search(context.Background(), topic, maxResults)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(result.Entries) == 0 {
		fmt.Println("No papers found.")
		return nil
	}

	if asJSON {
		out, err := json.MarshalIndent(result.Entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("=== Results (%d papers) ===\n\n", len(result.Entries))

	for i, entry := range result.Entries {
		fmt.Printf("[%d] %s\n", i+1, entry.Title)
		if len(entry.Authors) > 0 {
			fmt.Printf("    Authors: %s\n", strings.Join(entry.Authors, ", "))
		}
		if len(entry.Categories) > 0 {
			fmt.Printf("    Categories: %s\n", strings.Join(entry.Categories, ", "))
		}
		if entry.PDF != "" {
			fmt.Printf("    PDF: %s\n", entry.PDF)
		}

		if entry.Summary != "" {
			abstract := strings.Join(strings.Fields(entry.Summary), " ")
			if abstractLimit > 0 && len(abstract) > abstractLimit {
				abstract = abstract[:abstractLimit] + "..."
			}
			fmt.Printf("    %s\n", abstract)
		}
		fmt.Println()
	}

	return nil
}
