package repository

// Times are stored as unix milliseconds and booleans as 0/1 so the same DDL
// and queries run on SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS skills (
		user_id          TEXT NOT NULL,
		tag              TEXT NOT NULL,
		rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
		attempts_7d      INTEGER NOT NULL DEFAULT 0,
		correct_7d       INTEGER NOT NULL DEFAULT 0,
		streak_correct   INTEGER NOT NULL DEFAULT 0,
		last_practice_at BIGINT,
		PRIMARY KEY (user_id, tag)
	)`,
	`CREATE TABLE IF NOT EXISTS queue_batches (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		generation INTEGER NOT NULL,
		focus_tag  TEXT,
		created_at BIGINT NOT NULL,
		UNIQUE (user_id, generation)
	)`,
	`CREATE TABLE IF NOT EXISTS queue_items (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		batch_id   TEXT NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0,
		leak_tag   TEXT NOT NULL,
		drill_type TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		status     TEXT NOT NULL,
		due_at     BIGINT NOT NULL,
		repetition INTEGER NOT NULL DEFAULT 0,
		last_score INTEGER,
		scenario   TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_items_user_status ON queue_items (user_id, status, due_at)`,
	`CREATE TABLE IF NOT EXISTS attempts (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		queue_item_id  TEXT NOT NULL,
		leak_tag       TEXT NOT NULL,
		drill_type     TEXT NOT NULL,
		scenario       TEXT,
		chosen_action  TEXT NOT NULL,
		correct_action TEXT NOT NULL,
		correct        INTEGER NOT NULL,
		mistake_tag    TEXT,
		mistake_reason TEXT,
		created_at     BIGINT NOT NULL,
		item_repetition INTEGER NOT NULL DEFAULT 0,
		item_due_at     BIGINT NOT NULL DEFAULT 0,
		UNIQUE (queue_item_id, item_repetition, item_due_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_user_tag ON attempts (user_id, leak_tag, created_at)`,
}
