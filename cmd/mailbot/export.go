package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mailbot/internal/store"
)

// export/import give the operator a CSV window into the mailbox tables:
// dump them next to the databases, edit, and apply rows back by msg_id.

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the inbox and outbox tables to CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mailbox, err := store.Open(cfg.General.DataDir, logger)
			if err != nil {
				return err
			}
			defer mailbox.Close()

			for _, table := range []store.Table{store.TableInbox, store.TableOutbox} {
				path := filepath.Join(cfg.General.DataDir, string(table)+".csv")
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				n, err := mailbox.ExportCSV(context.Background(), table, f)
				closeErr := f.Close()
				if err != nil {
					return fmt.Errorf("export %s: %w", table, err)
				}
				if closeErr != nil {
					return closeErr
				}
				fmt.Printf("Exported %d rows to %s\n", n, path)
			}
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Apply edited CSV rows back to the inbox and outbox tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mailbox, err := store.Open(cfg.General.DataDir, logger)
			if err != nil {
				return err
			}
			defer mailbox.Close()

			for _, table := range []store.Table{store.TableInbox, store.TableOutbox} {
				path := filepath.Join(cfg.General.DataDir, string(table)+".csv")
				f, err := os.Open(path)
				if os.IsNotExist(err) {
					continue
				}
				if err != nil {
					return err
				}
				n, err := mailbox.ImportCSV(context.Background(), table, f)
				f.Close()
				if err != nil {
					return fmt.Errorf("import %s: %w", table, err)
				}
				fmt.Printf("Updated %d rows in %s from %s\n", n, table, path)
			}
			return nil
		},
	}
}
