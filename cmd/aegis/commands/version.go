package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the aegis version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("aegis", Version)
	},
}
