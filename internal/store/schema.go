package store

// schema is applied idempotently on every startup. The triggers are what
// make message immutability and event append-only hold even against a
// hand-written UPDATE/DELETE, not just against code that goes through this
// package.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now'))
);

CREATE TABLE IF NOT EXISTS messages (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	content              TEXT NOT NULL,
	role                 TEXT NOT NULL CHECK (role IN ('user','assistant')),
	corrects_message_id  INTEGER REFERENCES messages(id),
	timestamp            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now'))
);

CREATE TRIGGER IF NOT EXISTS messages_no_update
BEFORE UPDATE ON messages
BEGIN
	SELECT RAISE(ABORT, 'messages are immutable');
END;

CREATE TRIGGER IF NOT EXISTS messages_no_delete
BEFORE DELETE ON messages
BEGIN
	SELECT RAISE(ABORT, 'messages are immutable');
END;

CREATE TABLE IF NOT EXISTS conversation_messages (
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	message_id      INTEGER NOT NULL REFERENCES messages(id),
	created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now')),
	PRIMARY KEY (conversation_id, message_id)
);

CREATE TABLE IF NOT EXISTS events (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	type                 TEXT NOT NULL,
	payload_json         TEXT NOT NULL,
	conversation_id      INTEGER REFERENCES conversations(id),
	causality_message_id INTEGER REFERENCES messages(id),
	created_at           TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now'))
);

CREATE TRIGGER IF NOT EXISTS events_no_update
BEFORE UPDATE ON events
BEGIN
	SELECT RAISE(ABORT, 'events are append-only');
END;

CREATE TRIGGER IF NOT EXISTS events_no_delete
BEFORE DELETE ON events
BEGIN
	SELECT RAISE(ABORT, 'events are append-only');
END;

CREATE TABLE IF NOT EXISTS preferences (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	key                TEXT NOT NULL,
	value              TEXT NOT NULL,
	scope              TEXT NOT NULL DEFAULT 'global',
	created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now')),
	approved_event_id  INTEGER REFERENCES events(id),
	source_proposal_id INTEGER
);

CREATE TABLE IF NOT EXISTS preference_resets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	scope          TEXT NOT NULL,
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now')),
	reset_event_id INTEGER REFERENCES events(id)
);

CREATE TABLE IF NOT EXISTS preference_proposals (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id      INTEGER NOT NULL REFERENCES conversations(id),
	key                  TEXT NOT NULL,
	value                TEXT NOT NULL,
	proposal_text        TEXT NOT NULL,
	rationale            TEXT,
	status               TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected','dismissed')),
	created_at           TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%S', 'now')),
	decided_at           TEXT,
	causality_message_id INTEGER REFERENCES messages(id),
	assistant_message_id INTEGER REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_conversation_messages_message ON conversation_messages(message_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_conversation ON events(conversation_id);
CREATE INDEX IF NOT EXISTS idx_preferences_scope ON preferences(scope);
CREATE INDEX IF NOT EXISTS idx_preference_resets_scope ON preference_resets(scope);
CREATE INDEX IF NOT EXISTS idx_preference_proposals_conversation_status ON preference_proposals(conversation_id, status);
`
