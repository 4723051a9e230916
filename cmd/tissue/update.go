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
	updateTitle    string
	updateBody     string
	updateStatus   string
	updatePriority int
	updateAddTags  []string
	updateRmTags   []string
)

func init() {
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVar(&updateBody, "body", "", "New body")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "New status")
	updateCmd.Flags().IntVar(&updatePriority, "priority", -1, "New priority 1-5")
	updateCmd.Flags().StringSliceVar(&updateAddTags, "add-tag", nil, "Tag to add (repeatable)")
	updateCmd.Flags().StringSliceVar(&updateRmTags, "remove-tag", nil, "Tag to remove (repeatable)")
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an issue's title, body, status, priority, or tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveArg(cmd, args[0])
		if err != nil {
			return err
		}

		var upd tissue.IssueUpdate
		if cmd.Flags().Changed("title") {
			upd.Title = &updateTitle
		}
		if cmd.Flags().Changed("body") {
			upd.Body = &updateBody
		}
		if cmd.Flags().Changed("status") {
			s := tissue.Status(strings.ToLower(updateStatus))
			upd.Status = &s
		}
		if cmd.Flags().Changed("priority") {
			upd.Priority = &updatePriority
		}
		upd.AddTags = updateAddTags
		upd.RemoveTags = updateRmTags

		issue, err := st.UpdateIssue(cmd.Context(), id, upd)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(issue)
		}
		fmt.Printf("%s  [%s] (p%d)  %s\n", issue.ID, issue.Status, issue.Priority, issue.Title)
		return nil
	},
}
