package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jdeng/jbig2go/internal/fixtures"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		dir   string
		names []string
		list  bool
	)
	cmd := &cobra.Command{
		Use:          "create-test-jbig2",
		Short:        "Write JBIG2 test streams with known page checksums",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, err := selectFixtures(names)
			if err != nil {
				return err
			}
			if list {
				for _, f := range selected {
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s %dx%d %s\n  %s\n", f.Name, f.Width, f.Height, f.Checksum, f.Description)
				}
				return nil
			}
			return writeFixtures(cmd, dir, selected)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	cmd.Flags().StringSliceVarP(&names, "name", "n", nil, "fixtures to write (default all)")
	cmd.Flags().BoolVar(&list, "list", false, "list the fixtures and their checksums")
	return cmd
}

func selectFixtures(names []string) ([]fixtures.Fixture, error) {
	if len(names) == 0 {
		return fixtures.All(), nil
	}
	out := make([]fixtures.Fixture, 0, len(names))
	for _, n := range names {
		f, err := fixtures.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func writeFixtures(cmd *cobra.Command, dir string, fs []fixtures.Fixture) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range fs {
		path := filepath.Join(dir, f.FileName())
		if err := os.WriteFile(path, f.Data(), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		if g := f.Globals(); g != nil {
			path := filepath.Join(dir, f.GlobalsFileName())
			if err := os.WriteFile(path, g, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
	}
	return nil
}
