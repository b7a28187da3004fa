package dataset

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/divisions-cli/internal/division"
)

// SQLiteGateway serves division queries from a locally-loaded snapshot
// database. It holds a single connection and is not safe for concurrent
// use; wrap it in a Serializer.
type SQLiteGateway struct {
	db *sql.DB
}

// OpenSQLite opens a snapshot database at the given path. The pool is
// pinned to one connection so all statements run on the same handle.
func OpenSQLite(dsn string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteGateway{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS divisions (
	id        TEXT PRIMARY KEY,
	subtype   TEXT NOT NULL,
	country   TEXT NOT NULL,
	region    TEXT,
	name      TEXT NOT NULL,
	name_norm TEXT NOT NULL,
	geometry  BLOB
);

CREATE TABLE IF NOT EXISTS snapshot (
	id        TEXT PRIMARY KEY,
	version   TEXT NOT NULL,
	loaded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_divisions_subtype_country ON divisions(subtype, country);
CREATE INDEX IF NOT EXISTS idx_divisions_country_region ON divisions(country, region);
CREATE INDEX IF NOT EXISTS idx_divisions_name_norm ON divisions(country, name_norm);
`

// Migrate creates the snapshot schema. Used by the loader; the serving path
// assumes an already-loaded database.
func (g *SQLiteGateway) Migrate(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

// LoadSnapshot replaces the entire snapshot in one transaction: all division
// rows plus the snapshot metadata row. Insertion order is preserved, which
// fixes the gateway's natural return order for unordered queries.
func (g *SQLiteGateway) LoadSnapshot(ctx context.Context, snapshotID, version string, rows []Row) error {
	if version == "" {
		return eris.New("sqlite: snapshot version is required")
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin load")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM divisions`); err != nil {
		return eris.Wrap(err, "sqlite: clear divisions")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot`); err != nil {
		return eris.Wrap(err, "sqlite: clear snapshot")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO divisions (id, subtype, country, region, name, name_norm, geometry) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		var region any
		if r.Region != "" {
			region = r.Region
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, string(r.Subtype), r.Country, region, r.Name, division.NormalizeName(r.Name), r.Geometry,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert division %s", r.ID)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot (id, version, loaded_at) VALUES (?, ?, ?)`,
		snapshotID, version, time.Now().UTC(),
	); err != nil {
		return eris.Wrap(err, "sqlite: insert snapshot metadata")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit load")
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

// Version returns the loaded snapshot version.
func (g *SQLiteGateway) Version(ctx context.Context) (string, error) {
	var v string
	err := g.db.QueryRowContext(ctx,
		`SELECT version FROM snapshot ORDER BY loaded_at DESC LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", eris.New("sqlite: snapshot metadata missing (run load first)")
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: read snapshot version")
	}
	return v, nil
}

const sqliteCols = `id, subtype, country, IFNULL(region, ''), name`

// Execute runs one query. Listing queries are ordered by display name;
// geometry resolution intentionally keeps the table's natural order so that
// first-match semantics are stable across identical snapshots.
func (g *SQLiteGateway) Execute(ctx context.Context, q Query) ([]Row, error) {
	switch q.Op {
	case OpCountries:
		return g.query(ctx, false,
			`SELECT `+sqliteCols+` FROM divisions WHERE subtype = ? ORDER BY name`,
			string(division.SubtypeCountry))

	case OpDependencies:
		return g.query(ctx, false,
			`SELECT `+sqliteCols+` FROM divisions WHERE subtype = ? ORDER BY name`,
			string(division.SubtypeDependency))

	case OpSubtypes:
		return g.querySubtypes(ctx)

	case OpRegions:
		return g.query(ctx, false,
			`SELECT `+sqliteCols+` FROM divisions WHERE subtype = ? AND country = ? ORDER BY name`,
			string(division.SubtypeRegion), q.Country)

	case OpPlaces:
		sqlStr, args := placesSQL(q)
		return g.query(ctx, false, sqlStr, args...)

	case OpSearch:
		sqlStr, args := searchSQL(q)
		return g.query(ctx, false, sqlStr, args...)

	case OpGeometry:
		sqlStr, args := geometrySQL(q)
		return g.query(ctx, true, sqlStr, args...)
	}

	return nil, eris.Errorf("sqlite: unsupported op %q", q.Op)
}

func placesSQL(q Query) (string, []any) {
	var b strings.Builder
	args := []any{q.Country}

	b.WriteString(`SELECT ` + sqliteCols + ` FROM divisions WHERE country = ?`)
	if q.Region != "" {
		b.WriteString(` AND region = ?`)
		args = append(args, q.Region)
	}
	clause, subArgs := subtypeClause(q.Kinds)
	b.WriteString(clause)
	args = append(args, subArgs...)
	b.WriteString(` ORDER BY name`)

	return b.String(), args
}

func searchSQL(q Query) (string, []any) {
	var b strings.Builder
	args := []any{q.Country}

	b.WriteString(`SELECT ` + sqliteCols + ` FROM divisions WHERE country = ?`)
	if q.Region != "" {
		b.WriteString(` AND region = ?`)
		args = append(args, q.Region)
	}
	clause, subArgs := subtypeClause(q.Kinds)
	b.WriteString(clause)
	args = append(args, subArgs...)
	b.WriteString(` AND name_norm LIKE ?`)
	args = append(args, q.Pattern)
	b.WriteString(` ORDER BY name`)

	return b.String(), args
}

func geometrySQL(q Query) (string, []any) {
	cols := sqliteCols + `, geometry`

	switch {
	case q.Place != "":
		var b strings.Builder
		args := []any{q.Country}
		b.WriteString(`SELECT ` + cols + ` FROM divisions WHERE country = ?`)
		if q.Region != "" {
			b.WriteString(` AND region = ?`)
			args = append(args, q.Region)
		}
		kinds := q.Kinds
		if len(kinds) == 0 {
			kinds = division.PlaceSubtypes()
		}
		clause, subArgs := subtypeClause(kinds)
		b.WriteString(clause)
		args = append(args, subArgs...)
		expr, arg := nameMatchExpr(q.Place)
		b.WriteString(` AND ` + expr)
		args = append(args, arg)
		return b.String(), args

	case q.Region != "":
		return `SELECT ` + cols + ` FROM divisions WHERE subtype = ? AND country = ? AND region = ?`,
			[]any{string(division.SubtypeRegion), q.Country, q.Region}

	default:
		return `SELECT ` + cols + ` FROM divisions WHERE subtype IN (?, ?) AND country = ?`,
			[]any{string(division.SubtypeCountry), string(division.SubtypeDependency), q.Country}
	}
}

// nameMatchExpr matches a normalized place segment: exact when no wildcard
// is present, LIKE when the caller supplied one.
func nameMatchExpr(place string) (string, any) {
	if strings.ContainsAny(place, "%_") {
		return `name_norm LIKE ?`, place
	}
	return `name_norm = ?`, place
}

func subtypeClause(kinds []division.Subtype) (string, []any) {
	if len(kinds) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(kinds))
	args := make([]any, len(kinds))
	for i, k := range kinds {
		placeholders[i] = "?"
		args[i] = string(k)
	}
	return ` AND subtype IN (` + strings.Join(placeholders, ", ") + `)`, args
}

func (g *SQLiteGateway) query(ctx context.Context, withGeometry bool, sqlStr string, args ...any) ([]Row, error) {
	rows, err := g.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var subtype string
		if withGeometry {
			err = rows.Scan(&r.ID, &subtype, &r.Country, &r.Region, &r.Name, &r.Geometry)
		} else {
			err = rows.Scan(&r.ID, &subtype, &r.Country, &r.Region, &r.Name)
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		r.Subtype = division.Subtype(subtype)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rows")
}

func (g *SQLiteGateway) querySubtypes(ctx context.Context) ([]Row, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT DISTINCT subtype FROM divisions ORDER BY subtype`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query subtypes")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var subtype string
		if err := rows.Scan(&subtype); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subtype")
		}
		out = append(out, Row{Subtype: division.Subtype(subtype)})
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate subtypes")
}
