package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/audit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	practice_name TEXT NOT NULL,
	website       TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	specialty     TEXT NOT NULL DEFAULT '',
	salesforce_id TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'new',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	generation TEXT NOT NULL,
	score      INTEGER NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	findings   TEXT NOT NULL DEFAULT '[]',
	metadata   TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (lead_id, generation)
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	public_id  TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	data       TEXT NOT NULL,
	viewed     INTEGER NOT NULL DEFAULT 0,
	viewed_at  DATETIME,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_audits_lead_id ON audits(lead_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_lead_id ON snapshots(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, practice_name, website, phone, city, state, specialty, salesforce_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.PracticeName, lead.Website, lead.Phone, lead.City, lead.State,
		lead.Specialty, lead.SalesforceID, string(lead.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, practice_name, website, phone, city, state, specialty, salesforce_id, status, created_at, updated_at
		 FROM leads WHERE id = ?`, id)

	var l model.Lead
	err := row.Scan(&l.ID, &l.PracticeName, &l.Website, &l.Phone, &l.City, &l.State,
		&l.Specialty, &l.SalesforceID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}
	return &l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, practice_name, website, phone, city, state, specialty, salesforce_id, status, created_at, updated_at
		FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.PracticeName, &l.Website, &l.Phone, &l.City, &l.State,
			&l.Specialty, &l.SalesforceID, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) UpdateLeadWebsite(ctx context.Context, id string, website string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET website = ?, updated_at = ? WHERE id = ?`,
		website, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead website %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) UpsertAudit(ctx context.Context, record model.AuditRecord) (*model.AuditRecord, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	findingsJSON, metadataJSON, err := marshalAuditBlobs(record)
	if err != nil {
		return nil, err
	}

	// The (lead_id, generation) key keeps exactly one live record per
	// generation; re-audits replace in place and keep the original id.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audits (id, lead_id, generation, score, confidence, findings, metadata, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id, generation) DO UPDATE SET
			score = excluded.score,
			confidence = excluded.confidence,
			findings = excluded.findings,
			metadata = excluded.metadata,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		record.ID, record.LeadID, string(record.Generation), record.Score, record.Confidence,
		findingsJSON, metadataJSON, record.Error, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert audit for lead %s", record.LeadID)
	}
	return s.GetAudit(ctx, record.LeadID, record.Generation)
}

func (s *SQLiteStore) GetAudit(ctx context.Context, leadID string, gen model.Generation) (*model.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, generation, score, confidence, findings, metadata, error, created_at, updated_at
		 FROM audits WHERE lead_id = ? AND generation = ?`,
		leadID, string(gen),
	)

	var r model.AuditRecord
	var findingsJSON string
	var metadataJSON sql.NullString
	err := row.Scan(&r.ID, &r.LeadID, &r.Generation, &r.Score, &r.Confidence,
		&findingsJSON, &metadataJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan audit")
	}
	if err := unmarshalAuditBlobs(&r, findingsJSON, metadataJSON.String); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap model.ReportSnapshot) (*model.ReportSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.PublicID == "" {
		snap.PublicID = uuid.New().String()
	}
	snap.CreatedAt = time.Now().UTC()

	dataJSON, err := json.Marshal(snap.Data)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal snapshot data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, lead_id, public_id, type, data, viewed, viewed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, NULL, ?)`,
		snap.ID, snap.LeadID, snap.PublicID, string(snap.Type), string(dataJSON), snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert snapshot for lead %s", snap.LeadID)
	}
	return &snap, nil
}

func (s *SQLiteStore) GetSnapshotByPublicID(ctx context.Context, publicID string) (*model.ReportSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, public_id, type, data, viewed, viewed_at, created_at
		 FROM snapshots WHERE public_id = ?`, publicID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: snapshot %s", publicID)
	}
	return snap, err
}

func (s *SQLiteStore) MarkSnapshotViewed(ctx context.Context, publicID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET viewed = 1, viewed_at = ? WHERE public_id = ?`,
		time.Now().UTC(), publicID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark snapshot viewed %s", publicID)
	}
	return checkRowsAffected(res, "snapshot", publicID)
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, leadID string) ([]model.ReportSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, public_id, type, data, viewed, viewed_at, created_at
		 FROM snapshots WHERE lead_id = ? ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.ReportSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func marshalAuditBlobs(record model.AuditRecord) (string, any, error) {
	findings := record.Findings
	if findings == nil {
		findings = []model.Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return "", nil, eris.Wrap(err, "store: marshal findings")
	}

	var metadataJSON any
	if record.Metadata != nil {
		b, err := json.Marshal(record.Metadata)
		if err != nil {
			return "", nil, eris.Wrap(err, "store: marshal metadata")
		}
		metadataJSON = string(b)
	}
	return string(findingsJSON), metadataJSON, nil
}

func unmarshalAuditBlobs(r *model.AuditRecord, findingsJSON, metadataJSON string) error {
	if err := json.Unmarshal([]byte(findingsJSON), &r.Findings); err != nil {
		return eris.Wrap(err, "store: unmarshal findings")
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &r.Metadata); err != nil {
			return eris.Wrap(err, "store: unmarshal metadata")
		}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.ReportSnapshot, error) {
	var snap model.ReportSnapshot
	var dataJSON string
	var viewedAt sql.NullTime

	err := row.Scan(&snap.ID, &snap.LeadID, &snap.PublicID, &snap.Type,
		&dataJSON, &snap.Viewed, &viewedAt, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan snapshot")
	}

	if err := json.Unmarshal([]byte(dataJSON), &snap.Data); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal snapshot data")
	}
	if viewedAt.Valid {
		snap.ViewedAt = &viewedAt.Time
	}
	return &snap, nil
}
