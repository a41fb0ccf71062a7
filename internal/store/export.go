package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table selects which mailbox table an export or import targets.
type Table string

const (
	TableInbox  Table = "inbox"
	TableOutbox Table = "outbox"
)

var tableColumns = map[Table][]string{
	TableInbox:  {"content", "time_sent", "time_seen", "type", "sender", "subject", "msg_id", "thread_id", "external_ref"},
	TableOutbox: {"content", "time_sent", "sender", "subject", "msg_id", "thread_id", "external_ref"},
}

func (s *Store) tableDB(table Table) (*sql.DB, []string, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return nil, nil, fmt.Errorf("unknown table %q", table)
	}
	if table == TableInbox {
		return s.inbox, cols, nil
	}
	return s.outbox, cols, nil
}

// ExportCSV writes every row of the table as CSV, header first. Timestamps
// are exported in SQLite's stored text form so edited files import cleanly.
func (s *Store) ExportCSV(ctx context.Context, table Table, w io.Writer) (int, error) {
	db, cols, err := s.tableDB(table)
	if err != nil {
		return 0, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+strings.Join(cols, ", ")+` FROM messages`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, err
	}

	values := make([]sql.NullString, len(cols))
	scan := make([]any, len(cols))
	for i := range values {
		scan[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return count, err
		}
		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = v.String
		}
		if err := cw.Write(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	cw.Flush()
	return count, cw.Error()
}

// ImportCSV applies edited CSV rows back to the table, matching on msg_id.
// Rows whose msg_id does not exist are skipped; the CSV header must contain
// the msg_id column. Returns the number of rows updated.
func (s *Store) ImportCSV(ctx context.Context, table Table, r io.Reader) (int, error) {
	db, validCols, err := s.tableDB(table)
	if err != nil {
		return 0, err
	}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read CSV header: %w", err)
	}

	valid := make(map[string]bool, len(validCols))
	for _, c := range validCols {
		valid[c] = true
	}
	idIdx := -1
	for i, col := range header {
		if !valid[col] {
			return 0, fmt.Errorf("unknown column %q in CSV header", col)
		}
		if col == "msg_id" {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return 0, fmt.Errorf("CSV must include a msg_id column")
	}

	var setCols []string
	for i, col := range header {
		if i != idIdx {
			setCols = append(setCols, col+" = ?")
		}
	}
	if len(setCols) == 0 {
		return 0, fmt.Errorf("CSV has no columns to update")
	}
	updateSQL := `UPDATE messages SET ` + strings.Join(setCols, ", ") + ` WHERE msg_id = ?`

	updated := 0
	err = s.withTx(ctx, db, func(tx *sql.Tx) error {
		for {
			record, err := cr.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read CSV row: %w", err)
			}

			args := make([]any, 0, len(record))
			for i, v := range record {
				if i != idIdx {
					args = append(args, v)
				}
			}
			args = append(args, record[idIdx])

			res, err := tx.ExecContext(ctx, updateSQL, args...)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				updated++
			}
		}
	})
	return updated, err
}
