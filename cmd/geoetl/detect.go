package main

import (
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/geo-timeline-etl/internal/adapter/filesource"
	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/couchcryptid/geo-timeline-etl/internal/parser"
	"github.com/spf13/cobra"
)

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect FILE...",
		Short: "Print the detected format of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				f, err := filesource.New(filepath.Dir(path)).Read(cmd.Context(), path)
				if err != nil {
					fmt.Fprintf(out, "%s\t%s\t%v\n", path, domain.KindOf(err), err)
					continue
				}
				format, err := parser.Detect(f.Name, f.Content)
				if err != nil {
					fmt.Fprintf(out, "%s\t%s\t%v\n", path, domain.KindOf(err), err)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", path, format)
			}
			return nil
		},
	}
}
