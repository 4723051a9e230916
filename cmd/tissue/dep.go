package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tissue-vcs/tissue"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependencies between issues",
}

var depAddCmd = &cobra.Command{
	Use:   "add <src> <kind> <dst>",
	Short: "Add a dependency edge: src <kind> dst, kind one of blocks, parent, relates",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveArg(cmd, args[0])
		if err != nil {
			return err
		}
		dst, err := resolveArg(cmd, args[2])
		if err != nil {
			return err
		}
		dep, err := st.AddDep(cmd.Context(), src, dst, tissue.DepKind(args[1]))
		if err != nil {
			return fmt.Errorf("dep add: %w", err)
		}
		fmt.Printf("%s %s %s (rev %s)\n", dep.SrcID, dep.Kind, dep.DstID, dep.Rev)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <src> <kind> <dst>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := resolveArg(cmd, args[0])
		if err != nil {
			return err
		}
		dst, err := resolveArg(cmd, args[2])
		if err != nil {
			return err
		}
		if err := st.RemoveDep(cmd.Context(), src, dst, tissue.DepKind(args[1])); err != nil {
			return fmt.Errorf("dep remove: %w", err)
		}
		fmt.Printf("removed %s %s %s\n", src, args[1], dst)
		return nil
	},
}

func init() {
	depCmd.AddCommand(depAddCmd, depRemoveCmd)
}
