package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    roles TEXT NOT NULL DEFAULT '[]',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    deleted_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sections (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL REFERENCES courses(id),
    title TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS units (
    id TEXT PRIMARY KEY,
    section_id TEXT NOT NULL REFERENCES sections(id),
    title TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assignments (
    user_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    assigned_at DATETIME NOT NULL,
    PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS completion_facts (
    user_id TEXT NOT NULL,
    unit_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completion_method TEXT NOT NULL DEFAULT 'natural',
    completed_at DATETIME,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (user_id, unit_id, course_id)
);

CREATE TABLE IF NOT EXISTS course_progress (
    user_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'not_started',
    progress_percentage INTEGER NOT NULL DEFAULT 0,
    completed_units INTEGER NOT NULL DEFAULT 0,
    total_units INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME,
    completed_at DATETIME,
    last_accessed_at DATETIME NOT NULL,
    PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS audit_entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    target_user_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    performed_by TEXT NOT NULL,
    performed_at DATETIME NOT NULL,
    reason TEXT NOT NULL CHECK (length(trim(reason)) > 0),
    old_data TEXT NOT NULL DEFAULT 'null',
    new_data TEXT NOT NULL DEFAULT 'null'
);

CREATE TABLE IF NOT EXISTS admin_state (
    user_id INTEGER PRIMARY KEY,
    current_state TEXT NOT NULL DEFAULT '',
    target_user_id TEXT NOT NULL DEFAULT '',
    target_unit_id TEXT NOT NULL DEFAULT '',
    target_course_id TEXT NOT NULL DEFAULT '',
    pending_roles TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS admin_messages (
    key TEXT NOT NULL,
    chat_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    PRIMARY KEY (key, chat_id)
);

CREATE INDEX IF NOT EXISTS idx_sections_course ON sections(course_id);
CREATE INDEX IF NOT EXISTS idx_units_section ON units(section_id);
CREATE INDEX IF NOT EXISTS idx_facts_user_course ON completion_facts(user_id, course_id);
CREATE INDEX IF NOT EXISTS idx_progress_course ON course_progress(course_id);
CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_entries(target_user_id, performed_at);

CREATE TRIGGER IF NOT EXISTS audit_entries_no_update
BEFORE UPDATE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete
BEFORE DELETE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are append-only');
END;

CREATE TRIGGER IF NOT EXISTS completion_facts_no_delete
BEFORE DELETE ON completion_facts
BEGIN
    SELECT RAISE(ABORT, 'completion facts are never deleted');
END;
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
