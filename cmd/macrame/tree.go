package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macrame/admin/internal/app/maintenance"
)

var errBrokenTrees = errors.New("broken hierarchies found")

func newTreeCmd(opts *rootOptions) *cobra.Command {
	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "Tree integrity tools",
	}
	treeCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check the page, nav and menu trees for dangling parents and cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := opts.open()
			if err != nil {
				return err
			}
			env := &environment{db: db}
			defer env.close()

			trees, err := maintenance.CheckTrees(cmd.Context(), db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			broken := false
			for _, t := range trees {
				if len(t.Problems) == 0 {
					fmt.Fprintf(out, "ok      %s (%d nodes)\n", t.Tree, t.Nodes)
					continue
				}
				broken = true
				fmt.Fprintf(out, "broken  %s (%d nodes)\n", t.Tree, t.Nodes)
				for _, problem := range t.Problems {
					fmt.Fprintf(out, "        %s\n", problem)
				}
			}
			if broken {
				return errBrokenTrees
			}
			return nil
		},
	})
	return treeCmd
}
