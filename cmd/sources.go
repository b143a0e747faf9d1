package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camarohq/hunter/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources in run order",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := source.LoadCatalog(cfg.Sources.File)
		if err != nil {
			return err
		}
		return printSources(os.Stdout, catalog, cfg.Sources.Enabled)
	},
}

func printSources(w io.Writer, catalog *source.Catalog, enabled []string) error {
	on := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		on[name] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tKIND\tFEEDS\tAUCTION\tENABLED")
	for i, d := range catalog.Sources {
		active := len(on) == 0 || on[d.Name]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\t%t\n", i+1, d.Name, d.Kind, len(d.Feeds), d.Auction, active)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
