package store

const schema = `
CREATE TABLE IF NOT EXISTS units (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	unit_type TEXT NOT NULL DEFAULT '',
	number TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS patrols (
	id TEXT PRIMARY KEY,
	unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (unit_id, name)
);

CREATE TABLE IF NOT EXISTS scouts (
	id TEXT PRIMARY KEY,
	unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
	patrol_id TEXT REFERENCES patrols(id) ON DELETE SET NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	bsa_member_id TEXT NOT NULL DEFAULT '',
	rank TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	position2 TEXT NOT NULL DEFAULT '',
	renewal_status TEXT NOT NULL DEFAULT '',
	expiration_date TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	full_name TEXT NOT NULL,
	bsa_member_id TEXT NOT NULL DEFAULT '',
	member_type TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	position2 TEXT NOT NULL DEFAULT '',
	renewal_status TEXT NOT NULL DEFAULT '',
	expiration_date TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS unit_memberships (
	unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
	profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (unit_id, profile_id)
);

CREATE TABLE IF NOT EXISTS sync_sessions (
	id TEXT PRIMARY KEY,
	unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'browser',
	pages_visited INTEGER NOT NULL DEFAULT 0,
	records_extracted INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS sync_session_errors (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sync_sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	at TEXT NOT NULL,
	phase TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	member TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staged_members (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sync_sessions(id) ON DELETE CASCADE,
	unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	bsa_member_id TEXT NOT NULL,
	member_type TEXT NOT NULL,
	age TEXT NOT NULL DEFAULT '',
	last_rank_approved TEXT NOT NULL DEFAULT '',
	patrol TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	position2 TEXT NOT NULL DEFAULT '',
	renewal_status TEXT NOT NULL DEFAULT '',
	expiration_date TEXT NOT NULL DEFAULT '',
	change_type TEXT NOT NULL,
	existing_scout_id TEXT NOT NULL DEFAULT '',
	existing_profile_id TEXT NOT NULL DEFAULT '',
	matched_profile_id TEXT NOT NULL DEFAULT '',
	match_type TEXT NOT NULL DEFAULT '',
	changes TEXT,
	skip_reason TEXT NOT NULL DEFAULT '',
	is_selected INTEGER NOT NULL DEFAULT 0,
	is_adult INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	UNIQUE (session_id, bsa_member_id)
);

DROP INDEX IF EXISTS idx_scouts_unit_bsa;
CREATE UNIQUE INDEX IF NOT EXISTS uq_scouts_unit_bsa ON scouts(unit_id, bsa_member_id) WHERE bsa_member_id <> '';
CREATE INDEX IF NOT EXISTS idx_profiles_bsa ON profiles(bsa_member_id);
CREATE INDEX IF NOT EXISTS idx_memberships_profile ON unit_memberships(profile_id);
CREATE INDEX IF NOT EXISTS idx_sessions_unit ON sync_sessions(unit_id, started_at);
CREATE INDEX IF NOT EXISTS idx_session_errors_session ON sync_session_errors(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_staged_session ON staged_members(session_id, seq);
`
