package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tissue-vcs/tissue"
	"github.com/tissue-vcs/tissue/internal/config"
	"github.com/tissue-vcs/tissue/internal/diag"
)

var (
	storeDir   string
	actor      string
	jsonOutput bool

	st   *tissue.Store
	conf *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Store directory (default: walk up from cwd for .tissue)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name for this invocation, not stored with writes (default: config actor or $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.AddCommand(
		initCmd,
		createCmd,
		showCmd,
		updateCmd,
		commentCmd,
		depCmd,
		listCmd,
		readyCmd,
		cleanCmd,
		migrateCmd,
		doctorCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:   "tissue",
	Short: "tissue - a git-native issue tracker backed by an append-only log",
	Long:  "Issues live in a JSONL log alongside your repository; a SQLite cache gives fast lookup, listing, and full-text search over it.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		var err error
		conf, err = config.Load("")
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !jsonOutput {
			jsonOutput = conf.JSON
		}
		if actor == "" {
			actor = conf.Actor
		}
		if actor == "" {
			actor = os.Getenv("USER")
		}

		dir := storeDir
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getwd: %w", err)
			}
			found, ok := tissue.FindStoreDir(cwd)
			if !ok {
				return fmt.Errorf("no .tissue store found above %s (run `tissue init` or pass --store)", cwd)
			}
			dir = found
		}
		st, err = tissue.Open(dir)
		if err != nil {
			return fmt.Errorf("opening store at %s: %w", dir, err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if st == nil {
			return nil
		}
		err := st.Close()
		st = nil
		return err
	},
}

func fatalf(format string, args ...any) {
	diag.Logf(format, args...)
	fmt.Fprintf(os.Stderr, "tissue: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	defer diag.Close()
	if err := rootCmd.Execute(); err != nil {
		fatalf("%v", err)
	}
}

// resolveArg turns a CLI-supplied id fragment into a canonical issue id,
// reporting a user-facing error through the command's own error return
// rather than fatalf, so cobra's usual "Error: ..." formatting applies.
func resolveArg(cmd *cobra.Command, raw string) (string, error) {
	id, err := st.ResolveID(cmd.Context(), raw)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", raw, err)
	}
	return id, nil
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
