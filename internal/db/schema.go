package db

const schemaSQL = `
-- ===========================================================================
-- DEVICE SETTINGS (single row, id = 1)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS device_settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  amplipi_host TEXT NOT NULL,
  zone1_id INTEGER NOT NULL DEFAULT 0,
  zone2_id INTEGER NOT NULL DEFAULT -1,
  source_id INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- ===========================================================================
-- TOUCH CALIBRATION (single row, id = 1)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS touch_calibration (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  x_scale REAL NOT NULL,
  y_scale REAL NOT NULL,
  x_offset REAL NOT NULL,
  y_offset REAL NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- ===========================================================================
-- AUDIT EVENTS
-- ===========================================================================

CREATE TABLE IF NOT EXISTS audit_events (
  event_id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  type TEXT NOT NULL,
  level TEXT NOT NULL,
  request_id TEXT,
  zone_id INTEGER,
  message TEXT NOT NULL,
  payload TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(type);
CREATE INDEX IF NOT EXISTS idx_audit_events_level ON audit_events(level);
CREATE INDEX IF NOT EXISTS idx_audit_events_zone_id ON audit_events(zone_id) WHERE zone_id IS NOT NULL;
`
