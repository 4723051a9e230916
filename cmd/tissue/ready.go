package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var readyLimit int

func init() {
	readyCmd.Flags().IntVar(&readyLimit, "limit", 0, "Limit the number of results (0: unlimited)")
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List open issues with no unresolved blocker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := st.ListReady(cmd.Context(), readyLimit)
		if err != nil {
			return fmt.Errorf("ready: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(issues)
		}
		for _, issue := range issues {
			fmt.Printf("%s  (p%d)  %s\n", issue.ID, issue.Priority, issue.Title)
		}
		return nil
	},
}
