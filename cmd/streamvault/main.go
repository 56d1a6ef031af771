package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var versionString = "2.0.1"

var rootCmd = &cobra.Command{
	Use:   "streamvault",
	Short: "Archive files in a Telegram channel and stream them over HTTP.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionString)
	},
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
