package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/macrame/admin/internal/models"
	"github.com/macrame/admin/internal/tree"
)

func newPagesCmd(opts *rootOptions) *cobra.Command {
	pages := &cobra.Command{
		Use:   "pages",
		Short: "Inspect and reorder the page tree",
	}
	pages.AddCommand(newPagesTreeCmd(opts), newPagesRoutesCmd(opts), newPagesOrderCmd(opts))
	return pages
}

func newPagesTreeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the page tree with full slugs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			forest, err := env.services.Pages.Store().Forest(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var walkErr error
			forest.Walk(func(page models.Page, depth int) bool {
				path, err := forest.FullSlug(page.ID)
				if err != nil {
					walkErr = err
					return false
				}
				state := "draft"
				if page.IsLive {
					state = "live"
				}
				fmt.Fprintf(out, "%s%s  %s  [%s] %s\n", strings.Repeat("  ", depth), page.Name, path, state, page.ID)
				return true
			})
			return walkErr
		},
	}
}

func newPagesRoutesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the public route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			routes, err := env.services.Pages.Routes(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tPAGE\tTEMPLATE")
			for _, route := range routes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", route.Path, route.Name, route.Template)
			}
			return w.Flush()
		},
	}
}

func newPagesOrderCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		parent string
	)
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Apply a nested order file to the page tree",
		Long: `Reads a JSON array of {"id": ..., "children": [...]} items and places the
pages in that order below --parent (the roots when omitted).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readOrderFile(file)
			if err != nil {
				return err
			}

			env, err := opts.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			var parentID *string
			if p := strings.TrimSpace(parent); p != "" {
				parentID = &p
			}
			if err := env.services.Pages.Order(cmd.Context(), parentID, items); err != nil {
				return err
			}
			placements, err := tree.Flatten(parentID, items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ordered %d pages\n", len(placements))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Order file (JSON), - for stdin")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent page id of the ordered items")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readOrderFile accepts either a bare item array or an {"order": [...]} object.
func readOrderFile(path string) ([]tree.OrderItem, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read order file: %w", err)
	}

	var items []tree.OrderItem
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Order []tree.OrderItem `json:"order"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse order file: %w", err)
	}
	return wrapped.Order, nil
}
