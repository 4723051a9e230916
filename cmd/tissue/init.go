package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tissue-vcs/tissue"
)

var initPrefix string

func init() {
	initCmd.Flags().StringVar(&initPrefix, "prefix", "", "Issue id prefix (default: name of dir)")
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new .tissue store in dir (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		prefix := initPrefix
		if prefix == "" {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			prefix = filepath.Base(abs)
		}

		storePath := filepath.Join(dir, ".tissue")
		s, err := tissue.Init(storePath, prefix)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer s.Close()

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			return enc.Encode(map[string]string{"dir": absPath(storePath), "prefix": s.Prefix()})
		}
		fmt.Printf("initialized tissue store in %s (prefix %q)\n", absPath(storePath), s.Prefix())
		return nil
	},
}
