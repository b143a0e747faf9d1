package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the persisted catalog to XLSX or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}
		format, err := export.ParseFormat(exportFormat, exportOut)
		if err != nil {
			return err
		}

		store, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open state store")
		}
		defer store.Close() //nolint:errcheck

		doc, err := store.LoadCatalog(ctx)
		if err != nil {
			return eris.Wrap(err, "load catalog")
		}
		if err := export.ToFile(exportOut, format, doc); err != nil {
			return err
		}

		zap.L().Info("catalog exported",
			zap.String("path", exportOut),
			zap.String("format", string(format)),
			zap.Int("listings", len(doc.Listings)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "xlsx or csv (default from --out extension)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
