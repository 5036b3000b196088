package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
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
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	generation TEXT NOT NULL,
	score      INTEGER NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	findings   JSONB NOT NULL DEFAULT '[]',
	metadata   JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (lead_id, generation)
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	public_id  TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	data       JSONB NOT NULL,
	viewed     BOOLEAN NOT NULL DEFAULT false,
	viewed_at  TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_audits_lead_id ON audits(lead_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_lead_id ON snapshots(lead_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, practice_name, website, phone, city, state, specialty, salesforce_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lead.ID, lead.PracticeName, lead.Website, lead.Phone, lead.City, lead.State,
		lead.Specialty, lead.SalesforceID, string(lead.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, practice_name, website, phone, city, state, specialty, salesforce_id, status, created_at, updated_at
		 FROM leads WHERE id = $1`, id)

	var l model.Lead
	err := row.Scan(&l.ID, &l.PracticeName, &l.Website, &l.Phone, &l.City, &l.State,
		&l.Specialty, &l.SalesforceID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	return &l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, practice_name, website, phone, city, state, specialty, salesforce_id, status, created_at, updated_at
		FROM leads`
	var args []any

	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.PracticeName, &l.Website, &l.Phone, &l.City, &l.State,
			&l.Specialty, &l.SalesforceID, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
		if len(leads) >= limit {
			break
		}
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadWebsite(ctx context.Context, id string, website string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET website = $1, updated_at = $2 WHERE id = $3`,
		website, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead website %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertAudit(ctx context.Context, record model.AuditRecord) (*model.AuditRecord, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	findingsJSON, metadataJSON, err := marshalAuditBlobs(record)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audits (id, lead_id, generation, score, confidence, findings, metadata, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (lead_id, generation) DO UPDATE SET
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			findings = EXCLUDED.findings,
			metadata = EXCLUDED.metadata,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		record.ID, record.LeadID, string(record.Generation), record.Score, record.Confidence,
		findingsJSON, metadataJSON, record.Error, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert audit for lead %s", record.LeadID)
	}
	return s.GetAudit(ctx, record.LeadID, record.Generation)
}

func (s *PostgresStore) GetAudit(ctx context.Context, leadID string, gen model.Generation) (*model.AuditRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, generation, score, confidence, findings, metadata, error, created_at, updated_at
		 FROM audits WHERE lead_id = $1 AND generation = $2`,
		leadID, string(gen),
	)

	var r model.AuditRecord
	var findingsJSON []byte
	var metadataJSON []byte
	err := row.Scan(&r.ID, &r.LeadID, &r.Generation, &r.Score, &r.Confidence,
		&findingsJSON, &metadataJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan audit")
	}
	if err := unmarshalAuditBlobs(&r, string(findingsJSON), string(metadataJSON)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap model.ReportSnapshot) (*model.ReportSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.PublicID == "" {
		snap.PublicID = uuid.New().String()
	}
	snap.CreatedAt = time.Now().UTC()

	dataJSON, err := json.Marshal(snap.Data)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal snapshot data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, lead_id, public_id, type, data, viewed, viewed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, false, NULL, $6)`,
		snap.ID, snap.LeadID, snap.PublicID, string(snap.Type), dataJSON, snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert snapshot for lead %s", snap.LeadID)
	}
	return &snap, nil
}

func (s *PostgresStore) GetSnapshotByPublicID(ctx context.Context, publicID string) (*model.ReportSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, public_id, type, data, viewed, viewed_at, created_at
		 FROM snapshots WHERE public_id = $1`, publicID)

	snap, err := scanPgSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: snapshot %s", publicID)
	}
	return snap, err
}

func (s *PostgresStore) MarkSnapshotViewed(ctx context.Context, publicID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE snapshots SET viewed = true, viewed_at = $1 WHERE public_id = $2`,
		time.Now().UTC(), publicID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark snapshot viewed %s", publicID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "snapshot %s", publicID)
	}
	return nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, leadID string) ([]model.ReportSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, public_id, type, data, viewed, viewed_at, created_at
		 FROM snapshots WHERE lead_id = $1 ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.ReportSnapshot
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func scanPgSnapshot(row scannable) (*model.ReportSnapshot, error) {
	var snap model.ReportSnapshot
	var dataJSON []byte
	var viewedAt *time.Time

	err := row.Scan(&snap.ID, &snap.LeadID, &snap.PublicID, &snap.Type,
		&dataJSON, &snap.Viewed, &viewedAt, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}

	if err := json.Unmarshal(dataJSON, &snap.Data); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot data")
	}
	snap.ViewedAt = viewedAt
	return &snap, nil
}
