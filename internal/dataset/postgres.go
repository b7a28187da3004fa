package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/divisions-cli/internal/division"
)

// Querier is the subset of *pgx.Conn the PostGIS gateway uses. pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresGateway serves division queries from a PostGIS-backed snapshot.
// It rides a single *pgx.Conn, which is not safe for concurrent use — the
// Serializer exists for exactly this hazard.
type PostgresGateway struct {
	conn  Querier
	close func(context.Context) error
}

// ConnectPostgres opens a single connection to the snapshot database.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresGateway, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresGateway{conn: conn, close: conn.Close}, nil
}

// NewPostgresGateway wraps an existing connection (or a mock in tests).
func NewPostgresGateway(q Querier) *PostgresGateway {
	return &PostgresGateway{conn: q}
}

func (g *PostgresGateway) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close(context.Background())
}

// Version returns the loaded snapshot version.
func (g *PostgresGateway) Version(ctx context.Context) (string, error) {
	rows, err := g.conn.Query(ctx,
		`SELECT version FROM snapshot ORDER BY loaded_at DESC LIMIT 1`)
	if err != nil {
		return "", eris.Wrap(err, "postgres: read snapshot version")
	}
	defer rows.Close()

	if !rows.Next() {
		return "", eris.New("postgres: snapshot metadata missing")
	}
	var v string
	if err := rows.Scan(&v); err != nil {
		return "", eris.Wrap(err, "postgres: scan snapshot version")
	}
	return v, rows.Err()
}

const pgCols = `id, subtype, country, COALESCE(region, ''), name`

// Execute runs one query. Mirrors the SQLite gateway's semantics, with
// geometry served as EWKB via ST_AsEWKB.
func (g *PostgresGateway) Execute(ctx context.Context, q Query) ([]Row, error) {
	switch q.Op {
	case OpCountries:
		return g.query(ctx, false,
			`SELECT `+pgCols+` FROM divisions WHERE subtype = $1 ORDER BY name`,
			string(division.SubtypeCountry))

	case OpDependencies:
		return g.query(ctx, false,
			`SELECT `+pgCols+` FROM divisions WHERE subtype = $1 ORDER BY name`,
			string(division.SubtypeDependency))

	case OpSubtypes:
		return g.querySubtypes(ctx)

	case OpRegions:
		return g.query(ctx, false,
			`SELECT `+pgCols+` FROM divisions WHERE subtype = $1 AND country = $2 ORDER BY name`,
			string(division.SubtypeRegion), q.Country)

	case OpPlaces, OpSearch, OpGeometry:
		sqlStr, args := pgScopedSQL(q)
		return g.query(ctx, q.Op == OpGeometry, sqlStr, args...)
	}

	return nil, eris.Errorf("postgres: unsupported op %q", q.Op)
}

// pgScopedSQL builds the country/region-scoped queries that share a shape:
// places listings, searches, and geometry resolution.
func pgScopedSQL(q Query) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	cols := pgCols
	if q.Op == OpGeometry {
		cols += `, ST_AsEWKB(geometry)`
	}

	if q.Op == OpGeometry && q.Place == "" {
		// Country or region row resolution.
		if q.Region != "" {
			b.WriteString(`SELECT ` + cols + ` FROM divisions WHERE subtype = ` + next(string(division.SubtypeRegion)))
			b.WriteString(` AND country = ` + next(q.Country))
			b.WriteString(` AND region = ` + next(q.Region))
		} else {
			b.WriteString(`SELECT ` + cols + ` FROM divisions WHERE subtype IN (` +
				next(string(division.SubtypeCountry)) + `, ` + next(string(division.SubtypeDependency)) + `)`)
			b.WriteString(` AND country = ` + next(q.Country))
		}
		return b.String(), args
	}

	b.WriteString(`SELECT ` + cols + ` FROM divisions WHERE country = ` + next(q.Country))
	if q.Region != "" {
		b.WriteString(` AND region = ` + next(q.Region))
	}

	kinds := q.Kinds
	if len(kinds) == 0 && q.Op == OpGeometry {
		kinds = division.PlaceSubtypes()
	}
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, k := range kinds {
			placeholders[i] = next(string(k))
		}
		b.WriteString(` AND subtype IN (` + strings.Join(placeholders, ", ") + `)`)
	}

	switch q.Op {
	case OpSearch:
		b.WriteString(` AND name_norm LIKE ` + next(q.Pattern))
		b.WriteString(` ORDER BY name`)
	case OpGeometry:
		if strings.ContainsAny(q.Place, "%_") {
			b.WriteString(` AND name_norm LIKE ` + next(q.Place))
		} else {
			b.WriteString(` AND name_norm = ` + next(q.Place))
		}
	default:
		b.WriteString(` ORDER BY name`)
	}

	return b.String(), args
}

func (g *PostgresGateway) query(ctx context.Context, withGeometry bool, sqlStr string, args ...any) ([]Row, error) {
	rows, err := g.conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
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
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		r.Subtype = division.Subtype(subtype)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rows")
}

func (g *PostgresGateway) querySubtypes(ctx context.Context) ([]Row, error) {
	rows, err := g.conn.Query(ctx, `SELECT DISTINCT subtype FROM divisions ORDER BY subtype`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query subtypes")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var subtype string
		if err := rows.Scan(&subtype); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subtype")
		}
		out = append(out, Row{Subtype: division.Subtype(subtype)})
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate subtypes")
}
