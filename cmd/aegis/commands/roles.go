package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/holst/aegis/internal/agent/role"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the specialist roles and their tool permissions",
	RunE:  runRoles,
}

func runRoles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	roles := cfg.RoleConfigs()

	for _, r := range role.All {
		rc := roles[r]
		fmt.Printf("%s (%s)\n", rc.DisplayName, r)
		fmt.Printf("  quality threshold: %.1f\n", rc.QualityThreshold)
		fmt.Printf("  timeout:           %s\n", rc.Timeout)
		if len(rc.Tools) > 0 {
			fmt.Printf("  tools:             %s\n", strings.Join(rc.Tools, ", "))
		} else {
			fmt.Printf("  tools:             (none)\n")
		}
		fmt.Println()
	}
	return nil
}
