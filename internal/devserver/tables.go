package devserver

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

var (
	errEmptyCSV      = errors.New("csv file has no header")
	errNotReadOnly   = errors.New("only read-only SELECT queries are supported")
	errTooManyTables = errors.New("table limit reached")
)

// csvTable is a parsed CSV file waiting to be loaded.
type csvTable struct {
	name    string
	columns []string
	rows    [][]string
}

// parseCSV reads a whole CSV file. The table is named after the file stem.
func parseCSV(filename string, r io.Reader) (*csvTable, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse %s: %w", filename, errEmptyCSV)
	}

	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = "table"
	}
	return &csvTable{
		name:    name,
		columns: normalizeColumns(records[0]),
		rows:    records[1:],
	}, nil
}

// normalizeColumns names blank headers column_N and suffixes duplicates.
func normalizeColumns(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		key := strings.ToLower(h)
		if n := seen[key]; n > 0 {
			seen[key] = n + 1
			h = h + "_" + strconv.Itoa(n)
		} else {
			seen[key] = 1
		}
		cols[i] = h
	}
	return cols
}

// uniqueName returns base, or base_1, base_2... if base is taken.
func uniqueName(base string, taken []string) string {
	name := base
	for i := 1; slices.ContainsFunc(taken, func(t string) bool { return strings.EqualFold(t, name) }); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// load writes every table in one transaction and returns their final names.
// The whole batch is refused with errTooManyTables when it would take the
// session past maxTables; zero means no limit.
func (s *session) load(ctx context.Context, tables []*csvTable, maxTables int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxTables > 0 && len(s.tables)+len(tables) > maxTables {
		return nil, errTooManyTables
	}

	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	taken := slices.Clone(s.tables)
	var names []string
	for _, t := range tables {
		name := uniqueName(t.name, taken)
		if err := insertTable(ctx, tx, name, t); err != nil {
			return nil, err
		}
		taken = append(taken, name)
		names = append(names, name)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.tables = taken
	return names, nil
}

func insertTable(ctx context.Context, tx *sql.Tx, name string, t *csvTable) error {
	defs := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(t.columns))
	for _, row := range t.rows {
		for i := range args {
			args[i] = row[i]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
	}
	return nil
}

// query runs a read-only statement and renders the result as a text table.
func (s *session) query(ctx context.Context, statement string) (string, error) {
	statement = strings.TrimSuffix(strings.TrimSpace(statement), ";")
	switch strings.ToUpper(leadingKeyword(statement)) {
	case "SELECT", "WITH":
	default:
		return "", errNotReadOnly
	}
	if strings.Contains(statement, ";") {
		return "", errNotReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", errNoDatabase
	}

	// The pool holds a single connection, so the pragma covers the query.
	if _, err := s.db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return "", fmt.Errorf("enable query_only: %w", err)
	}
	defer s.db.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF")

	rows, err := s.db.QueryContext(ctx, statement)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	return renderRows(rows)
}

func leadingKeyword(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

func renderRows(rows *sql.Rows) (string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	cells := make([]string, len(cols))
	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		for i, v := range values {
			switch v := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " | "))
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if count == 1 {
		b.WriteString("\n(1 row)")
	} else {
		fmt.Fprintf(&b, "\n(%d rows)", count)
	}
	return b.String(), nil
}
