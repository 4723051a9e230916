package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var migrateDryRun bool

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Report what would be migrated without mutating this store")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <source-dir>",
	Short: "Merge another store's log into this one, skipping issues, deps, and comments that already exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := st.Migrate(cmd.Context(), args[0], migrateDryRun)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		fmt.Printf("issues: %d added, %d skipped\n", result.IssuesAdded, result.IssuesSkipped)
		fmt.Printf("deps: %d added, %d skipped\n", result.DepsAdded, result.DepsSkipped)
		fmt.Printf("comments: %d added, %d skipped\n", result.CommentsAdded, result.CommentsSkipped)
		return nil
	},
}
