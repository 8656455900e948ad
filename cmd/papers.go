package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahryar908/researchy/pkg/config"
	"github.com/shahryar908/researchy/pkg/papers"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "List rendered papers",
	Long: `Lists the PDFs in the render output directory along with any topics
recorded in the paper index.

Example:
  researchy papers
  researchy papers --user usr_123`,
	RunE: runPapers,
}

func init() {
	rootCmd.AddCommand(papersCmd)

	papersCmd.Flags().String("user", "", "only show papers rendered for this user")
}

func runPapers(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dirs := append([]string{cfg.Render.OutputDir}, cfg.Papers.ExtraDirs...)
	files := papers.ScanDirs(dirs...)

	topics := map[string]papers.Paper{}
	if index, err := papers.OpenIndex(cfg.Render.IndexPath); err == nil {
		recorded, err := index.List(context.Background(), userID)
		if err == nil {
			for _, p := range recorded {
				topics[p.Filename] = p
			}
		}
		_ = index.Close()
	}

	if userID != "" {
		// The filesystem doesn't know about users; keep only indexed files.
		filtered := files[:0]
		for _, f := range files {
			if _, ok := topics[f.Filename]; ok {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	if len(files) == 0 {
		fmt.Println("No papers found.")
		return nil
	}

	fmt.Printf("=== Papers (%d) ===\n\n", len(files))
	for _, f := range files {
		fmt.Printf("%s\n", f.Filename)
		fmt.Printf("    Size: %.1f KB  |  Modified: %s\n",
			float64(f.Size)/1024, f.ModTime.Format("2006-01-02 15:04"))
		if p, ok := topics[f.Filename]; ok && p.Topic != "" {
			fmt.Printf("    Topic: %s\n", p.Topic)
		}
		fmt.Println()
	}

	return nil
}
