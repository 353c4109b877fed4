package store

const schema = `
CREATE TABLE IF NOT EXISTS tuning_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    config_hash TEXT NOT NULL,
    model_id TEXT NOT NULL,
    params_key TEXT NOT NULL,
    fold_scores TEXT NOT NULL,
    mean_auc REAL NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (config_hash, model_id, params_key)
);

CREATE INDEX IF NOT EXISTS idx_tuning_lookup
    ON tuning_results(config_hash, model_id, params_key);
`
