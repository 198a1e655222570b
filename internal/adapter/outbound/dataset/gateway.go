// Package dataset implements the out-of-scope-per-contract tabular
// data reads behind the gated dataset endpoints: a thin, parameterized
// read-only wrapper around DATABASE_URL. It exists only because the
// HTTP surface needs something to proxy to once the gate opens.
package dataset

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ridgeline-io/datagate/internal/domain/cell"
)

// Names lists the six fixed datasets the gateway is willing to read.
// A request for any other table is rejected before it reaches SQL.
var Names = []string{
	"carteira-logistica",
	"mov-estoque-logistica",
	"docas-logistica",
	"pedidos-romaneio-logistica",
	"carregamento-logistica",
	"faturamento-logistica",
}

var tableByName = map[string]string{
	"carteira-logistica":         "CARTEIRA_LOGISTICA",
	"mov-estoque-logistica":      "MOV_ESTOQUE_LOGISTICA",
	"docas-logistica":            "DOCAS_LOGISTICA",
	"pedidos-romaneio-logistica": "PEDIDOS_ROMANEIO_LOGISTICA",
	"carregamento-logistica":     "CARREGAMENTO_LOGISTICA",
	"faturamento-logistica":      "FATURAMENTO_LOGISTICA",
}

// IsKnownDataset reports whether name is one of the six fixed datasets.
func IsKnownDataset(name string) bool {
	_, ok := tableByName[name]
	return ok
}

// Row is a single result row, column name to normalized value.
type Row map[string]cell.Cell

// Query describes a single dataset read.
type Query struct {
	Limit        int    // 0 means unbounded
	Offset       int
	StatusFilter string // empty means no filter
}

// Gateway holds the pooled connection to the read-only dataset database.
type Gateway struct {
	db *sql.DB
}

// Open connects to dsn (a modernc.org/sqlite DSN, e.g. "file:data.db?mode=ro").
func Open(ctx context.Context, dsn string) (*Gateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dataset database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping dataset database: %w", err)
	}
	return &Gateway{db: db}, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Ping issues a trivial read against the data store, for health checks.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Fetch runs a parameterized SELECT against the table backing name and
// returns its rows as normalized Cell values. Unlike the source this
// is adapted from, status_filter and limit/offset are bound parameters,
// never string-interpolated into the query.
func (g *Gateway) Fetch(ctx context.Context, name string, q Query) ([]Row, error) {
	table, ok := tableByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}

	query := fmt.Sprintf("SELECT * FROM %s", table)
	var args []interface{}
	if q.StatusFilter != "" {
		query = fmt.Sprintf("SELECT * FROM (%s) AS filtered WHERE STATUS = ?", query)
		args = append(args, q.StatusFilter)
	}
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns for dataset %s: %w", name, err)
	}

	var result []Row
	for rows.Next() {
		scanned := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row for dataset %s: %w", name, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = toCell(scanned[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows for dataset %s: %w", name, err)
	}
	return result, nil
}

func toCell(v interface{}) cell.Cell {
	switch t := v.(type) {
	case nil:
		return cell.NewNull()
	case int64:
		return cell.NewInt(t)
	case float64:
		return cell.NewFloat(t)
	case bool:
		return cell.NewBool(t)
	case string:
		return cell.NewString(t)
	case []byte:
		return cell.NewBytes(t)
	default:
		return cell.NewString(fmt.Sprintf("%v", t))
	}
}
