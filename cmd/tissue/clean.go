package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tissue-vcs/tissue"
)

var (
	cleanOlderThan time.Duration
	cleanDryRun    bool
)

func init() {
	cleanCmd.Flags().DurationVar(&cleanOlderThan, "older-than", 0, "Only remove terminal-status issues last updated more than this long ago")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Report what would be removed without rewriting the log")
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove terminal-status issues (and their comments and dependencies) from the log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanDryRun {
			candidates, err := st.CleanCandidates(cmd.Context(), cleanOlderThan)
			if err != nil {
				return fmt.Errorf("clean --dry-run: %w", err)
			}
			return reportClean(candidates)
		}
		removed, err := st.Clean(cmd.Context(), cleanOlderThan)
		if err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		return reportClean(removed)
	},
}

func reportClean(issues []*tissue.Issue) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(issues)
	}
	if len(issues) == 0 {
		fmt.Println("nothing to clean")
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("%s  [%s]  %s\n", issue.ID, issue.Status, issue.Title)
	}
	return nil
}
