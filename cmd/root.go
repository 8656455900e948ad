package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "researchy",
	Short: "Researchy - AI research assistant backend",
	Long: `Researchy is an AI research assistant: a chat agent that searches
arXiv, reads papers, and renders LaTeX documents to PDF.

Features:
  - Gemini-backed chat agent with tool calling
  - arXiv paper search with response caching
  - PDF reading for papers the agent finds
  - LaTeX to PDF rendering via tectonic
  - SSE streaming chat API

Environment Variables:
  GEMINI_API_KEY          Gemini API key for the chat model
  BACKEND_URL             Main backend for conversation history
  SUPABASE_URL            Supabase project URL for paper storage
  SUPABASE_SERVICE_KEY    Supabase service-role key`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.researchy.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".researchy")
	}

	// Read environment variables
	viper.SetEnvPrefix("RESEARCHY")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
