// Command distri is the DistriNaranjos toolbox: the terminal sheet editor,
// the storefront/order server, and import/export utilities, all over the same
// data directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orimhanre/distrinaranjos-sub001/internal/export"
	"github.com/orimhanre/distrinaranjos-sub001/internal/shop"
	"github.com/orimhanre/distrinaranjos-sub001/internal/store"
	"github.com/orimhanre/distrinaranjos-sub001/internal/tui"
)

var dataDir string

func main() {
	root := &cobra.Command{
		Use:           "distri",
		Short:         "DistriNaranjos admin grid and storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "data", "sheet data directory")

	root.AddCommand(editCmd(), serveCmd(), exportCmd(), importCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func openStore(logger *slog.Logger) (*store.Store, error) {
	return store.Open(dataDir, logger)
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the terminal sheet editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := openStore(logger)
			if err != nil {
				return err
			}
			defer st.Close()
			return tui.Run(st, logger)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront and admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := openStore(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			cfg := shop.ConfigFromEnv()
			db := shop.ConnectDB(cfg, logger)
			if db != nil {
				defer db.Close()
			}

			var mailer shop.Mailer
			if cfg.ResendAPIKey != "" {
				mailer = &shop.Resend{APIKey: cfg.ResendAPIKey, From: cfg.MailFrom}
			}
			svc := shop.NewService(cfg, db, st, mailer, logger)
			if err := svc.EnsureSchema(context.Background()); err != nil {
				return err
			}
			logger.Info("serving", "port", cfg.Port, "db", db != nil)
			return shop.NewServer(svc, logger).Start()
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <sheet-id> <file.xlsx|file.csv>",
		Short: "Export a sheet to xlsx or csv",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := openStore(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.Load(args[0])
			if err != nil {
				return err
			}
			out := args[1]
			switch strings.ToLower(filepath.Ext(out)) {
			case ".xlsx":
				return export.WriteXLSX(s, out)
			case ".csv":
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				return export.WriteCSV(s, f)
			default:
				return fmt.Errorf("unsupported format %q", filepath.Ext(out))
			}
		},
	}
}

func importCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a csv file as a new sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := openStore(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			s, err := export.ReadCSV(f, name)
			if err != nil {
				return err
			}
			if err := st.Save(s); err != nil {
				return err
			}
			fmt.Printf("imported %s (%d rows) as %s\n", name, len(s.Rows), s.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sheet name (defaults to file name)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo products sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := openStore(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.SeedDemo()
			if err != nil {
				return err
			}
			fmt.Printf("seeded %q as %s\n", s.Name, s.ID)
			fmt.Printf("set PRODUCTS_SHEET_ID=%s to serve it\n", s.ID)
			return nil
		},
	}
}
