package main

import (
	"os"

	"github.com/spf13/cobra"
)

const flagConfig = "config"

var rootCmd = &cobra.Command{
	Use:          "ema-assistant",
	Short:        "Wake-word voice assistant backed by a Direct Line bot",
	SilenceUsage: true,
	Long: `ema-assistant waits for its wake phrase, opens a conversation with a
Direct Line bot and then answers push-to-talk questions: each recording is
transcribed, sent to the bot and the reply is spoken back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP(flagConfig, "c", "", "Configuration file path (YAML)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
