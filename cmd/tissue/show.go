package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an issue, its comments, and its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveArg(cmd, args[0])
		if err != nil {
			return err
		}
		issue, err := st.FetchIssue(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}
		comments, err := st.FetchComments(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}
		deps, err := st.FetchDeps(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(struct {
				Issue    any `json:"issue"`
				Comments any `json:"comments"`
				Deps     any `json:"deps"`
			}{issue, comments, deps})
		}

		fmt.Printf("%s  [%s] (p%d)  %s\n", issue.ID, issue.Status, issue.Priority, issue.Title)
		if issue.Body != "" {
			fmt.Printf("\n%s\n", issue.Body)
		}
		if len(issue.Tags) > 0 {
			fmt.Printf("\ntags: %v\n", issue.Tags)
		}
		if len(deps) > 0 {
			fmt.Println("\ndeps:")
			for _, d := range deps {
				fmt.Printf("  %s %s -> %s\n", d.Kind, d.SrcID, d.DstID)
			}
		}
		if len(comments) > 0 {
			fmt.Println("\ncomments:")
			for _, c := range comments {
				fmt.Printf("  [%s] %s\n", c.ID, c.Body)
			}
		}
		return nil
	},
}
