package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "gowxbot",
	Short: "WeChat chat-bot backend: webhook, rule router, durable outbound queue",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gowxbot %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printHeader(title string) {
	c := color.New(color.FgCyan, color.Bold)
	c.Println("============================================")
	c.Printf("  %s\n", title)
	c.Println("============================================")
}
