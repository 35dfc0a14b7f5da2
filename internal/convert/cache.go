package convert

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE features (
	idx INTEGER PRIMARY KEY,
	feature_id TEXT,
	properties TEXT NOT NULL,
	wkb BLOB NOT NULL
);
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// writeCache stores fc in a fresh SQLite file at dbPath. Geometries are
// kept as WKB; properties as JSON text. Features without a geometry are
// dropped and counted in the returned value.
func writeCache(ctx context.Context, dbPath string, fc *geojson.FeatureCollection, meta map[string]string) (skipped int, err error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // reopened by LoadCache

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = MEMORY"); err != nil {
		return 0, err
	}
	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features (idx, feature_id, properties, wkb) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	idx := 0
	for _, f := range fc.Features {
		if f.Geometry == nil {
			skipped++
			continue
		}
		geom, err := wkb.Marshal(f.Geometry)
		if err != nil {
			return skipped, fmt.Errorf("encode feature %d: %w", idx, err)
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return skipped, fmt.Errorf("encode properties of feature %d: %w", idx, err)
		}
		var id sql.NullString
		if f.ID != nil {
			raw, err := json.Marshal(f.ID)
			if err != nil {
				return skipped, fmt.Errorf("encode id of feature %d: %w", idx, err)
			}
			id = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, idx, id, string(props), geom); err != nil {
			return skipped, fmt.Errorf("insert feature %d: %w", idx, err)
		}
		idx++
	}

	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return skipped, fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return skipped, fmt.Errorf("commit: %w", err)
	}
	return skipped, nil
}

// LoadCache reads a cache file back into a FeatureCollection, in the
// order the features appeared in the source document.
func LoadCache(dbPath string) (*geojson.FeatureCollection, error) {
	// sql.Open would create an empty database in place of a missing cache.
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT idx, feature_id, properties, wkb FROM features ORDER BY idx")
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var (
			idx   int
			id    sql.NullString
			props string
			blob  []byte
		)
		if err := rows.Scan(&idx, &id, &props, &blob); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		geom, err := wkb.Unmarshal(blob)
		if err != nil {
			return nil, fmt.Errorf("decode feature %d: %w", idx, err)
		}
		f := geojson.NewFeature(geom)
		if err := json.Unmarshal([]byte(props), &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties of feature %d: %w", idx, err)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		if id.Valid {
			if err := json.Unmarshal([]byte(id.String), &f.ID); err != nil {
				return nil, fmt.Errorf("decode id of feature %d: %w", idx, err)
			}
		}
		fc.Append(f)
	}
	return fc, rows.Err()
}

// CacheMeta returns the key/value metadata recorded at conversion time.
func CacheMeta(dbPath string) (map[string]string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
