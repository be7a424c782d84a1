package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lineage/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if formatFlag == string(FormatJSON) {
			return printResponse(version.Build())
		}
		fmt.Println(version.Full())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
