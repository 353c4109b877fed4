// Package store persists cross-validation scores in SQLite so re-runs with
// an unchanged configuration skip retraining. Rows are keyed by the config
// hash; the database is purely a cache and can be deleted at any time.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	diabriskErrors "github.com/medscreen/diabrisk/pkg/errors"
)

// Cache is a SQLite-backed tuning result cache. It implements
// selection.ResultCache for one configuration hash.
type Cache struct {
	db         *sql.DB
	configHash string
}

// Open opens (or creates) the cache database at path. Use ":memory:" in
// tests.
func Open(path, configHash string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, diabriskErrors.Wrapf(err, "opening cache %s", path)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, diabriskErrors.Wrap(err, "enabling WAL mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, diabriskErrors.Wrap(err, "creating cache schema")
	}

	return &Cache{db: db, configHash: configHash}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Lookup returns the cached fold scores for a candidate, if present.
func (c *Cache) Lookup(modelID, paramsKey string) ([]float64, bool, error) {
	query := `
		SELECT fold_scores
		FROM tuning_results
		WHERE config_hash = ? AND model_id = ? AND params_key = ?
	`

	var encoded string
	err := c.db.QueryRow(query, c.configHash, modelID, paramsKey).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, diabriskErrors.Wrapf(err, "cache lookup for %s/%s", modelID, paramsKey)
	}

	var scores []float64
	if err := json.Unmarshal([]byte(encoded), &scores); err != nil {
		return nil, false, diabriskErrors.Wrapf(err, "decoding cached scores for %s/%s", modelID, paramsKey)
	}
	return scores, true, nil
}

// Save stores the fold scores for a candidate, replacing any prior row.
func (c *Cache) Save(modelID, paramsKey string, scores []float64, mean float64) error {
	encoded, err := json.Marshal(scores)
	if err != nil {
		return diabriskErrors.Wrap(err, "encoding fold scores")
	}

	query := `
		INSERT OR REPLACE INTO tuning_results
		(config_hash, model_id, params_key, fold_scores, mean_auc, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = c.db.Exec(query,
		c.configHash,
		modelID,
		paramsKey,
		string(encoded),
		mean,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return diabriskErrors.Wrapf(err, "cache save for %s/%s", modelID, paramsKey)
	}
	return nil
}

// Purge drops every row for a different configuration hash. Old entries
// can never be read again, so this keeps the file from growing across
// config changes.
func (c *Cache) Purge() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM tuning_results WHERE config_hash != ?`, c.configHash)
	if err != nil {
		return 0, diabriskErrors.Wrap(err, "purging stale cache rows")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, diabriskErrors.Wrap(err, "counting purged rows")
	}
	return n, nil
}
