package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coderet/coderet/internal/config"
	"github.com/coderet/coderet/internal/index"
)

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch [BRANCH]",
		Short: "Switch the active indexed branch",
		Long: `Switch which branch's index 'coderet serve' and 'coderet search' operate on.

Each branch keeps its own index under .coderet/branches/<branch>; this
command does not run git checkout, it only reports which already-indexed
branch directory coderet would read from. Run with no argument to list
every branch that currently has an index.

Example:
  coderet switch feature/foo
  coderet switch        # list indexed branches`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
			}
			return runSwitch(cmd, target)
		},
	}
}

func runSwitch(cmd *cobra.Command, target string) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	branches, err := index.ListBranchDirs(root, ".coderet")
	if err != nil {
		return fmt.Errorf("failed to list indexed branches: %w", err)
	}

	if target == "" {
		if len(branches) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No indexed branches found. Run 'coderet index' first.")
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Indexed branches:")
		for _, b := range branches {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", b)
		}
		return nil
	}

	sanitized := index.SanitizeBranchName(target)
	found := false
	for _, b := range branches {
		if b == sanitized {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("branch '%s' has no index\n\nRun 'coderet switch' to list indexed branches, or 'coderet index' to index it", target)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Branch '%s' is indexed at .coderet/branches/%s\n", target, sanitized)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Check out that branch with git, then 'coderet serve' will pick up its index automatically.")
	return nil
}
