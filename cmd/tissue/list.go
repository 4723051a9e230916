package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tissue-vcs/tissue"
)

var (
	listStatus string
	listTag    string
	listSearch string
	listLimit  int
)

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Full-text search over title, body, and comments")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Limit the number of results (0: unlimited)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues, optionally filtered by status, tag, or search",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := tissue.ListFilter{Tag: listTag, Search: listSearch, Limit: listLimit}
		if listStatus != "" {
			s := tissue.Status(strings.ToLower(listStatus))
			f.Status = &s
		}
		issues, err := st.ListIssues(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(issues)
		}
		for _, issue := range issues {
			fmt.Printf("%s  [%s] (p%d)  %s\n", issue.ID, issue.Status, issue.Priority, issue.Title)
		}
		return nil
	},
}
