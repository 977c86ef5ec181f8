package main

import (
	"fmt"
	"sort"

	"github.com/agleyzer/hlslocalizer/internal/attrlist"
	"github.com/agleyzer/hlslocalizer/internal/ident"
	"github.com/spf13/cobra"
)

func newAttrsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attrs <prefix> <line>",
		Short: "Parse the attribute list of a playlist tag line",
		Example: `  hlslocalizer attrs '#EXT-X-KEY:' '#EXT-X-KEY:METHOD=AES-128,URI="https://example.com/key"'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := attrlist.Parse(args[1], args[0])

			names := make([]string, 0, len(attrs))
			for name := range attrs {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s=%s\n", name, attrs[name])
			}
			return nil
		},
	}
}

func newIDCommand() *cobra.Command {
	var withExt bool

	cmd := &cobra.Command{
		Use:   "id <input>...",
		Short: "Print the identifier of each input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, input := range args {
				if withExt {
					fmt.Fprintln(out, ident.SegmentPath(input))
					continue
				}
				fmt.Fprintln(out, ident.Of(input))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withExt, "ext", false, "Append the URL path extension, giving the local file name")

	return cmd
}
