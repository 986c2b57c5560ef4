// sqlite.go — Embedded SQL Result Store provider: a single-file database
// in the pack directory, WAL journaling, one row per key, survives
// restart (§4.10, §6: "results.db").
//
// Grounded in estuary-flow's go.mod use of mattn/go-sqlite3 — a single-file
// embedded driver, unlike a client/server DB (jackc/pgx, used elsewhere in
// the retrieval pack) which cannot satisfy the "single-file database in
// the pack directory" requirement.
package results

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// SQLiteProvider persists StoredResults in a single SQLite file.
type SQLiteProvider struct {
	db *sql.DB
}

// OpenSQLiteProvider opens (creating if absent) the results database at
// path, e.g. "<packDir>/results.db", in WAL journal mode.
func OpenSQLiteProvider(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errs.NewOperationalError("opening results store %s: %v", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			key TEXT PRIMARY KEY,
			pack_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			inputs TEXT NOT NULL,
			collectibles TEXT NOT NULL,
			meta TEXT,
			collectible_schema TEXT,
			stored_at TEXT NOT NULL,
			ran_at TEXT NOT NULL,
			version INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, errs.NewOperationalError("initializing results schema: %v", err)
	}
	return &SQLiteProvider{db: db}, nil
}

func (p *SQLiteProvider) Close() error { return p.db.Close() }

func (p *SQLiteProvider) Capabilities() map[Capability]bool {
	return map[Capability]bool{CapGet: true, CapStore: true, CapList: true, CapDelete: true, CapFilter: true}
}

func (p *SQLiteProvider) Store(r types.StoredResult) (types.StoredResult, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return types.StoredResult{}, errs.NewOperationalError("beginning store tx: %v", err)
	}
	defer tx.Rollback()

	var existingVersion int
	err = tx.QueryRow(`SELECT version FROM results WHERE key = ?`, r.Key).Scan(&existingVersion)
	switch {
	case err == sql.ErrNoRows:
		r.Version = 1
	case err != nil:
		return types.StoredResult{}, errs.NewOperationalError("reading existing version: %v", err)
	default:
		r.Version = existingVersion + 1
	}

	inputsJSON, _ := json.Marshal(r.Inputs)
	collectiblesJSON, _ := json.Marshal(r.Collectibles)
	metaJSON, _ := json.Marshal(r.Meta)
	schemaJSON, _ := json.Marshal(r.CollectibleSchema)

	if _, err := tx.Exec(`
		INSERT INTO results (key, pack_id, tool_name, inputs, collectibles, meta, collectible_schema, stored_at, ran_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			pack_id=excluded.pack_id, tool_name=excluded.tool_name, inputs=excluded.inputs,
			collectibles=excluded.collectibles, meta=excluded.meta,
			collectible_schema=excluded.collectible_schema, stored_at=excluded.stored_at,
			ran_at=excluded.ran_at, version=excluded.version
	`, r.Key, r.PackID, r.ToolName, string(inputsJSON), string(collectiblesJSON),
		string(metaJSON), string(schemaJSON), r.StoredAt.UTC().Format(time.RFC3339Nano),
		r.RanAt.UTC().Format(time.RFC3339Nano), r.Version); err != nil {
		return types.StoredResult{}, errs.NewOperationalError("upserting result: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return types.StoredResult{}, errs.NewOperationalError("committing store tx: %v", err)
	}
	return r, nil
}

func (p *SQLiteProvider) Get(key string) (types.StoredResult, bool, error) {
	row := p.db.QueryRow(`SELECT key, pack_id, tool_name, inputs, collectibles, meta, collectible_schema, stored_at, ran_at, version FROM results WHERE key = ?`, key)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return types.StoredResult{}, false, nil
	}
	if err != nil {
		return types.StoredResult{}, false, errs.NewOperationalError("reading result %q: %v", key, err)
	}
	return r, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (types.StoredResult, error) {
	var r types.StoredResult
	var inputsJSON, collectiblesJSON, metaJSON, schemaJSON string
	var storedAt, ranAt string
	if err := row.Scan(&r.Key, &r.PackID, &r.ToolName, &inputsJSON, &collectiblesJSON,
		&metaJSON, &schemaJSON, &storedAt, &ranAt, &r.Version); err != nil {
		return r, err
	}
	_ = json.Unmarshal([]byte(inputsJSON), &r.Inputs)
	_ = json.Unmarshal([]byte(collectiblesJSON), &r.Collectibles)
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &r.Meta)
	}
	if schemaJSON != "" {
		_ = json.Unmarshal([]byte(schemaJSON), &r.CollectibleSchema)
	}
	r.StoredAt, _ = time.Parse(time.RFC3339Nano, storedAt)
	r.RanAt, _ = time.Parse(time.RFC3339Nano, ranAt)
	return r, nil
}

func (p *SQLiteProvider) List(opts ListOptions) ([]types.StoredResultSummary, error) {
	query := `SELECT key, pack_id, tool_name, stored_at, version FROM results ORDER BY stored_at DESC`
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
	}
	var rows *sql.Rows
	var err error
	if opts.Limit > 0 {
		rows, err = p.db.Query(query, opts.Limit, opts.Offset)
	} else {
		rows, err = p.db.Query(query)
	}
	if err != nil {
		return nil, errs.NewOperationalError("listing results: %v", err)
	}
	defer rows.Close()

	var out []types.StoredResultSummary
	for rows.Next() {
		var s types.StoredResultSummary
		var storedAt string
		if err := rows.Scan(&s.Key, &s.PackID, &s.ToolName, &storedAt, &s.Version); err != nil {
			return nil, errs.NewOperationalError("scanning result row: %v", err)
		}
		s.StoredAt, _ = time.Parse(time.RFC3339Nano, storedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *SQLiteProvider) Delete(key string) (bool, error) {
	res, err := p.db.Exec(`DELETE FROM results WHERE key = ?`, key)
	if err != nil {
		return false, errs.NewOperationalError("deleting result %q: %v", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *SQLiteProvider) Filter(opts FilterOptions) (FilterResult, error) {
	r, ok, err := p.Get(opts.Key)
	if err != nil {
		return FilterResult{}, err
	}
	if !ok {
		return FilterResult{}, errs.NewOperationalError("no stored result for key %q", opts.Key)
	}
	return ApplyFilter(r.Collectibles, opts)
}
