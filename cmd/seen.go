package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/camarohq/hunter/internal/model"
)

var seenList bool

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "Show the size of the seen ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open state store")
		}
		defer store.Close() //nolint:errcheck

		seen, err := store.LoadSeen(ctx)
		if err != nil {
			return eris.Wrap(err, "load seen ledger")
		}
		return printSeen(os.Stdout, seen, seenList)
	},
}

func printSeen(w io.Writer, seen model.SeenLedger, list bool) error {
	if _, err := fmt.Fprintf(w, "%d identities seen\n", len(seen)); err != nil {
		return err
	}
	if !list {
		return nil
	}
	for _, id := range seen.Sorted() {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	seenCmd.Flags().BoolVar(&seenList, "list", false, "print every identity")
	rootCmd.AddCommand(seenCmd)
}
