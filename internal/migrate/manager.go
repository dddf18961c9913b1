// Package migrate applies the SQL schema and seed files shipped under
// migrations/. Bookkeeping lives in two tables so seeds and schema steps
// are tracked independently.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	migrationsTable = "schema_migrations"
	seedsTable      = "schema_seeds"
)

// Manager runs migrations and seeds against one database handle. Files are
// ordered by name; the numeric prefix convention (0001_, 0002_, ...) gives
// a total order.
type Manager struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
}

func NewManager(db *sql.DB, migrationsDir, seedsDir string) *Manager {
	return &Manager{db: db, migrationsDir: migrationsDir, seedsDir: seedsDir}
}

// Up applies every *.up.sql not yet recorded, each in its own transaction.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx, migrationsTable)
	if err != nil {
		return err
	}
	files, err := sqlFiles(m.migrationsDir, ".up.sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		if done[f.name] {
			continue
		}
		if err := m.runFile(ctx, f.path); err != nil {
			return fmt.Errorf("apply %s: %w", f.name, err)
		}
		if _, err := m.db.ExecContext(ctx,
			`insert into `+migrationsTable+`(name) values ($1)`, f.name); err != nil {
			return err
		}
	}
	return nil
}

// Down reverts the most recently applied migration using its *.down.sql.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return err
	}
	history, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("no migrations applied")
	}
	last := history[len(history)-1]
	downPath := filepath.Join(m.migrationsDir,
		strings.TrimSuffix(last, ".up.sql")+".down.sql")
	if _, err := os.Stat(downPath); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := m.runFile(ctx, downPath); err != nil {
		return fmt.Errorf("revert %s: %w", last, err)
	}
	_, err = m.db.ExecContext(ctx,
		`delete from `+migrationsTable+` where name = $1`, last)
	return err
}

// Seed applies every seed file exactly once. Seeds are expected to be
// idempotent anyway (on conflict do nothing), the bookkeeping just avoids
// rerunning them.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx, seedsTable)
	if err != nil {
		return err
	}
	files, err := sqlFiles(m.seedsDir, ".sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		if done[f.name] {
			continue
		}
		if err := m.runFile(ctx, f.path); err != nil {
			return fmt.Errorf("seed %s: %w", f.name, err)
		}
		if _, err := m.db.ExecContext(ctx,
			`insert into `+seedsTable+`(name) values ($1)`, f.name); err != nil {
			return err
		}
	}
	return nil
}

// Status lists applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		`select name from `+migrationsTable+` order by applied_at asc, name asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *Manager) ensureBookkeeping(ctx context.Context) error {
	for _, table := range []string{migrationsTable, seedsTable} {
		_, err := m.db.ExecContext(ctx, `create table if not exists `+table+` (
			name text primary key,
			applied_at timestamptz not null default now()
		)`)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) applied(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `select name from `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

// runFile executes one SQL file inside a transaction, statement by
// statement. Splitting respects single-quoted strings but not dollar
// quoting; migration files here do not use it.
func (m *Manager) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type sqlFile struct {
	name string
	path string
}

func sqlFiles(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		return nil, nil
	}
	var files []sqlFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, sqlFile{name: d.Name(), path: path})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

func splitStatements(script string) []string {
	var stmts []string
	var cur strings.Builder
	inString := false
	for _, r := range script {
		cur.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, cur.String())
				cur.Reset()
			}
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		stmts = append(stmts, cur.String())
	}
	return stmts
}
