package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the levtrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("levtrader version %s\n", version)
		fmt.Println("Leveraged position ledger and settlement engine")
		fmt.Println("https://github.com/rustyeddy/levtrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
