// Package schema defines the SQL schema for every table the engine persists
// to, in CockroachDB dialect.
package schema

// Schema contains the CREATE TABLE statements for all engine tables. Stores
// assume these tables exist; applying the schema is an operational concern.
const Schema = `
CREATE TABLE IF NOT EXISTS Alerts (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	source_id INT NOT NULL,
	keyword_id INT NOT NULL,
	title STRING NOT NULL DEFAULT '',
	content STRING NOT NULL DEFAULT '',
	url STRING NOT NULL DEFAULT '',
	matched_term STRING NOT NULL DEFAULT '',
	published_at STRING NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	content_hash STRING NOT NULL DEFAULT '',
	duplicate_of INT NOT NULL DEFAULT 0,
	risk_score FLOAT NOT NULL DEFAULT 0,
	severity STRING NOT NULL DEFAULT '',
	tas_score FLOAT NOT NULL DEFAULT 0,
	reviewed BOOL NOT NULL DEFAULT FALSE,
	INDEX by_content_hash (content_hash),
	INDEX by_url (url),
	INDEX by_created_at (created_at),
	INDEX by_source_reviewed (source_id, reviewed)
);
CREATE TABLE IF NOT EXISTS AlertEntities (
	alert_id INT NOT NULL,
	entity_type STRING NOT NULL,
	entity_value STRING NOT NULL,
	PRIMARY KEY (alert_id, entity_type, entity_value)
);
CREATE TABLE IF NOT EXISTS Sources (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	name STRING NOT NULL DEFAULT '',
	source_type STRING NOT NULL DEFAULT '',
	url STRING NOT NULL DEFAULT '',
	credibility_score FLOAT NOT NULL DEFAULT 0.5,
	bayesian_alpha FLOAT NOT NULL DEFAULT 2.0,
	bayesian_beta FLOAT NOT NULL DEFAULT 2.0,
	true_positives INT NOT NULL DEFAULT 0,
	false_positives INT NOT NULL DEFAULT 0,
	fail_streak INT NOT NULL DEFAULT 0,
	active BOOL NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS Keywords (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	term STRING NOT NULL DEFAULT '',
	category STRING NOT NULL DEFAULT '',
	weight FLOAT NOT NULL DEFAULT 1.0,
	weight_sigma FLOAT NOT NULL DEFAULT 0,
	active BOOL NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS KeywordFrequency (
	keyword_id INT NOT NULL,
	day STRING NOT NULL,
	count INT NOT NULL DEFAULT 0,
	PRIMARY KEY (keyword_id, day)
);
CREATE TABLE IF NOT EXISTS ScoreAudits (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	alert_id INT NOT NULL,
	keyword_weight FLOAT NOT NULL DEFAULT 0,
	source_credibility FLOAT NOT NULL DEFAULT 0,
	frequency_factor FLOAT NOT NULL DEFAULT 0,
	z_score FLOAT NOT NULL DEFAULT 0,
	recency_factor FLOAT NOT NULL DEFAULT 0,
	final_score FLOAT NOT NULL DEFAULT 0,
	mc_mean FLOAT NOT NULL DEFAULT 0,
	mc_p05 FLOAT NOT NULL DEFAULT 0,
	mc_p50 FLOAT NOT NULL DEFAULT 0,
	mc_p95 FLOAT NOT NULL DEFAULT 0,
	mc_std FLOAT NOT NULL DEFAULT 0,
	computed_at TIMESTAMPTZ NOT NULL,
	INDEX by_alert_computed (alert_id, computed_at DESC)
);
CREATE TABLE IF NOT EXISTS ScoreIntervals (
	alert_id INT PRIMARY KEY,
	n INT NOT NULL DEFAULT 0,
	p05 FLOAT NOT NULL DEFAULT 0,
	p50 FLOAT NOT NULL DEFAULT 0,
	p95 FLOAT NOT NULL DEFAULT 0,
	mean FLOAT NOT NULL DEFAULT 0,
	std FLOAT NOT NULL DEFAULT 0,
	method STRING NOT NULL DEFAULT '',
	computed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS ThreatSubjects (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	name STRING NOT NULL DEFAULT '',
	risk_tier STRING NOT NULL DEFAULT '',
	last_seen TIMESTAMPTZ,
	status STRING NOT NULL DEFAULT 'active'
);
CREATE TABLE IF NOT EXISTS BehavioralAssessments (
	subject_id INT NOT NULL,
	day STRING NOT NULL,
	indicators JSONB NOT NULL,
	pathway_score FLOAT NOT NULL DEFAULT 0,
	escalation_trend STRING NOT NULL DEFAULT '',
	evidence_summary STRING NOT NULL DEFAULT '',
	source_alert_ids JSONB,
	analyst_notes STRING NOT NULL DEFAULT '',
	PRIMARY KEY (subject_id, day)
);
CREATE TABLE IF NOT EXISTS POIs (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	name STRING NOT NULL DEFAULT '',
	role STRING NOT NULL DEFAULT '',
	active BOOL NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS POIHits (
	id INT PRIMARY KEY DEFAULT unique_rowid(),
	poi_id INT NOT NULL,
	alert_id INT NOT NULL,
	match_value STRING NOT NULL DEFAULT '',
	context STRING NOT NULL DEFAULT '',
	INDEX by_poi (poi_id),
	INDEX by_alert (alert_id)
);
CREATE TABLE IF NOT EXISTS POIAssessments (
	poi_id INT NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	window_end TIMESTAMPTZ NOT NULL,
	fixation BOOL NOT NULL DEFAULT FALSE,
	energy_burst BOOL NOT NULL DEFAULT FALSE,
	leakage BOOL NOT NULL DEFAULT FALSE,
	pathway BOOL NOT NULL DEFAULT FALSE,
	targeting_specificity BOOL NOT NULL DEFAULT FALSE,
	tas_score FLOAT NOT NULL DEFAULT 0,
	evidence JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (poi_id, window_start, window_end)
);
`
