package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create turns and profile facts",
		SQL: `
			CREATE TABLE turns (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				role        TEXT NOT NULL,
				text        TEXT NOT NULL,
				created_at  TEXT NOT NULL
			);

			CREATE TABLE profile_facts (
				attribute_key  TEXT PRIMARY KEY,
				subject        TEXT NOT NULL DEFAULT '',
				attribute      TEXT NOT NULL,
				value          TEXT NOT NULL,
				updated_at     TEXT NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "create memory chunks with FTS5",
		SQL: `
			CREATE TABLE memory_chunks (
				id          TEXT PRIMARY KEY,
				kind        TEXT NOT NULL,
				role        TEXT NOT NULL DEFAULT '',
				content     TEXT NOT NULL,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_memory_kind ON memory_chunks (kind);

			CREATE VIRTUAL TABLE memory_fts USING fts5(
				content,
				content='memory_chunks',
				content_rowid='rowid'
			);

			CREATE TRIGGER memory_ai AFTER INSERT ON memory_chunks BEGIN
				INSERT INTO memory_fts(rowid, content) VALUES (new.rowid, new.content);
			END;

			CREATE TRIGGER memory_ad AFTER DELETE ON memory_chunks BEGIN
				INSERT INTO memory_fts(memory_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
			END;

			CREATE TRIGGER memory_au AFTER UPDATE ON memory_chunks BEGIN
				INSERT INTO memory_fts(memory_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
				INSERT INTO memory_fts(rowid, content) VALUES (new.rowid, new.content);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "create knowledge base with FTS5",
		SQL: `
			CREATE TABLE kb_documents (
				name        TEXT PRIMARY KEY,
				doc_type    TEXT NOT NULL,
				chunks      INTEGER NOT NULL,
				added_at    TEXT NOT NULL
			);

			CREATE TABLE kb_chunks (
				id          TEXT PRIMARY KEY,
				doc_name    TEXT NOT NULL REFERENCES kb_documents(name) ON DELETE CASCADE,
				seq         INTEGER NOT NULL,
				content     TEXT NOT NULL
			);

			CREATE INDEX idx_kb_chunks_doc ON kb_chunks (doc_name, seq);

			CREATE VIRTUAL TABLE kb_fts USING fts5(
				content,
				content='kb_chunks',
				content_rowid='rowid'
			);

			CREATE TRIGGER kb_ai AFTER INSERT ON kb_chunks BEGIN
				INSERT INTO kb_fts(rowid, content) VALUES (new.rowid, new.content);
			END;

			CREATE TRIGGER kb_ad AFTER DELETE ON kb_chunks BEGIN
				INSERT INTO kb_fts(kb_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
			END;
		`,
	},
	{
		Version: 4,
		Name:    "create relay session log",
		SQL: `
			CREATE TABLE relay_sessions (
				id            TEXT PRIMARY KEY,
				remote_addr   TEXT NOT NULL DEFAULT '',
				started_at    TEXT NOT NULL,
				ended_at      TEXT,
				user_turns    INTEGER NOT NULL DEFAULT 0,
				close_reason  TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_relay_sessions_started ON relay_sessions (started_at);
		`,
	},
}
