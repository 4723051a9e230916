package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment <id> <body>",
	Short: "Add a comment to an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveArg(cmd, args[0])
		if err != nil {
			return err
		}
		c, err := st.AddComment(cmd.Context(), id, args[1])
		if err != nil {
			return fmt.Errorf("comment: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(c)
		}
		fmt.Printf("added comment %s to %s\n", c.ID, id)
		return nil
	},
}
