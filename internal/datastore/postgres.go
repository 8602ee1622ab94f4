package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/calebross/markethub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps the same path-keyed tree in a single jsonb table for
// self-hosted deployments:
//
//	CREATE TABLE nodes (path text PRIMARY KEY, value jsonb NOT NULL);
type Postgres struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPostgres(pool *pgxpool.Pool, prom *observability.Prom) *Postgres {
	return &Postgres{pool: pool, prom: prom}
}

func (p *Postgres) Write(ctx context.Context, path string, value map[string]any) error {
	return p.observe("write", func() error {
		raw, err := json.Marshal(value)

		if err != nil {
			return err
		}

		_, err = p.pool.Exec(
			ctx,
			`INSERT INTO nodes (path, value) VALUES ($1, $2)
	         ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value`,
			path, raw,
		)

		return err
	})
}

func (p *Postgres) Read(ctx context.Context, path string) (map[string]any, error) {
	var node map[string]any

	err := p.observe("read", func() error {
		var raw []byte

		err := p.pool.QueryRow(
			ctx,
			`SELECT value FROM nodes WHERE path = $1`,
			path,
		).Scan(&raw)

		if err == nil {
			return json.Unmarshal(raw, &node)
		}

		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		// No exact node: assemble direct children, the way the hosted
		// store answers a collection path.
		children, err := p.children(ctx, path)

		if err != nil {
			return err
		}

		if len(children) == 0 {
			return ErrNotFound
		}

		node = make(map[string]any, len(children))

		for key, child := range children {
			node[key] = child
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return node, nil
}

func (p *Postgres) Update(ctx context.Context, path string, partial map[string]any) error {
	return p.observe("update", func() error {
		raw, err := json.Marshal(partial)

		if err != nil {
			return err
		}

		_, err = p.pool.Exec(
			ctx,
			`INSERT INTO nodes (path, value) VALUES ($1, $2)
	         ON CONFLICT (path) DO UPDATE SET value = nodes.value || EXCLUDED.value`,
			path, raw,
		)

		return err
	})
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	// Idempotent, like the hosted store: deleting an absent path is fine.
	return p.observe("delete", func() error {
		_, err := p.pool.Exec(ctx, `DELETE FROM nodes WHERE path = $1`, path)

		return err
	})
}

func (p *Postgres) QueryEqual(ctx context.Context, collection, field, value string) (map[string]map[string]any, error) {
	var out map[string]map[string]any

	err := p.observe("query_equal", func() error {
		rows, err := p.pool.Query(
			ctx,
			`SELECT path, value FROM nodes
	         WHERE path LIKE $1 AND path NOT LIKE $2 AND value->>$3 = $4`,
			collection+"/%", collection+"/%/%", field, value,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make(map[string]map[string]any)

		for rows.Next() {
			var path string
			var raw []byte

			err = rows.Scan(&path, &raw)

			if err != nil {
				return err
			}

			var child map[string]any

			err = json.Unmarshal(raw, &child)

			if err != nil {
				return err
			}

			out[childKey(path)] = child
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (p *Postgres) children(ctx context.Context, path string) (map[string]map[string]any, error) {
	rows, err := p.pool.Query(
		ctx,
		`SELECT path, value FROM nodes
         WHERE path LIKE $1 AND path NOT LIKE $2`,
		path+"/%", path+"/%/%",
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make(map[string]map[string]any)

	for rows.Next() {
		var childPath string
		var raw []byte

		err = rows.Scan(&childPath, &raw)

		if err != nil {
			return nil, err
		}

		var child map[string]any

		err = json.Unmarshal(raw, &child)

		if err != nil {
			return nil, err
		}

		out[childKey(childPath)] = child
	}

	return out, rows.Err()
}

func (p *Postgres) observe(op string, fn func() error) error {
	if p.prom == nil {
		return fn()
	}

	return p.prom.ObserveStore(op, fn)
}

func childKey(path string) string {
	idx := strings.LastIndex(path, "/")

	if idx == -1 {
		return path
	}

	return path[idx+1:]
}
