package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tissue-vcs/tissue"
	"github.com/tissue-vcs/tissue/internal/jsonl"
)

// doctorReport is the read-only self-check result: a count of log lines
// jsonl.Parse rejects, plus whatever drifted between the real cache and a
// scratch cache rebuilt from scratch via ForceReimport over the same log.
type doctorReport struct {
	MalformedLines int  `json:"malformed_lines"`
	RealIssues     int  `json:"real_issues"`
	RebuiltIssues  int  `json:"rebuilt_issues"`
	CacheDrift     bool `json:"cache_drift"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the store for malformed log records and cache drift, without modifying it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logPath := filepath.Join(st.Dir(), tissue.LogFileName)

		lines, _, err := jsonl.ReadAll(logPath)
		if err != nil {
			return fmt.Errorf("doctor: reading log: %w", err)
		}
		malformed := 0
		for _, line := range lines {
			if _, err := jsonl.Parse(line); err != nil {
				malformed++
			}
		}

		realIssues, err := st.ListIssues(ctx, tissue.ListFilter{})
		if err != nil {
			return fmt.Errorf("doctor: listing real cache: %w", err)
		}

		scratchDir, err := os.MkdirTemp("", "tissue-doctor-*")
		if err != nil {
			return fmt.Errorf("doctor: %w", err)
		}
		defer os.RemoveAll(scratchDir)

		scratch, err := tissue.Init(scratchDir, st.Prefix())
		if err != nil {
			return fmt.Errorf("doctor: creating scratch cache: %w", err)
		}
		defer scratch.Close()

		logBytes, err := os.ReadFile(logPath)
		if err != nil {
			return fmt.Errorf("doctor: %w", err)
		}
		if err := os.WriteFile(filepath.Join(scratchDir, tissue.LogFileName), logBytes, 0o644); err != nil {
			return fmt.Errorf("doctor: seeding scratch log: %w", err)
		}
		if err := scratch.ForceReimport(ctx); err != nil {
			return fmt.Errorf("doctor: rebuilding scratch cache: %w", err)
		}

		rebuiltIssues, err := scratch.ListIssues(ctx, tissue.ListFilter{})
		if err != nil {
			return fmt.Errorf("doctor: listing scratch cache: %w", err)
		}

		report := doctorReport{
			MalformedLines: malformed,
			RealIssues:     len(realIssues),
			RebuiltIssues:  len(rebuiltIssues),
			CacheDrift:     len(realIssues) != len(rebuiltIssues),
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(report)
		}
		fmt.Printf("malformed log lines: %d\n", report.MalformedLines)
		fmt.Printf("real cache issues:    %d\n", report.RealIssues)
		fmt.Printf("rebuilt cache issues: %d\n", report.RebuiltIssues)
		if report.CacheDrift {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s cache drift detected: the cache and a rebuild from the log hold different issue counts\n", yellow("!"))
		} else {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s no cache drift detected\n", green("✓"))
		}
		return nil
	},
}
