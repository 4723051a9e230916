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
	createBody     string
	createPriority int
	createStatus   string
	createTags     []string
)

func init() {
	createCmd.Flags().StringVar(&createBody, "body", "", "Issue body")
	createCmd.Flags().IntVar(&createPriority, "priority", -1, "Priority 1-5 (lower is more urgent; default: 2)")
	createCmd.Flags().StringVar(&createStatus, "status", string(tissue.StatusOpen), "Initial status")
	createCmd.Flags().StringSliceVar(&createTags, "tag", nil, "Tag to attach (repeatable)")
}

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority := createPriority
		if !cmd.Flags().Changed("priority") {
			priority = tissue.DefaultPriority
		}
		issue, err := st.CreateIssue(cmd.Context(), args[0], createBody, priority, tissue.Status(strings.ToLower(createStatus)), createTags)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(issue)
		}
		fmt.Printf("%s  %s\n", issue.ID, issue.Title)
		return nil
	},
}
