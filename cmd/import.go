package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import businesses from a CSV or XLSX lead export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		var res *ingest.Result
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrap(err, "open csv")
			}
			defer f.Close() //nolint:errcheck
			res, err = ingest.ReadCSV(ctx, f)
			if err != nil {
				return eris.Wrap(err, "parse csv")
			}
		case ".xlsx":
			var err error
			res, err = ingest.ReadXLSX(path)
			if err != nil {
				return eris.Wrap(err, "parse xlsx")
			}
		default:
			return eris.Errorf("unsupported file type: %s", filepath.Ext(path))
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportBusinesses(ctx, res.Businesses)
		if err != nil {
			return eris.Wrap(err, "import businesses")
		}

		zap.L().Info("import complete",
			zap.Int64("imported", n),
			zap.Int("skipped", res.Skipped),
			zap.String("file", path),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
