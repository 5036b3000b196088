package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, practice_name, website`).
		WithArgs("nonexistent-lead").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLead(context.Background(), "nonexistent-lead")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAudit_Absent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, lead_id, generation`).
		WithArgs("lead-1", "current").
		WillReturnError(pgx.ErrNoRows)

	record, err := s.GetAudit(context.Background(), "lead-1", model.GenerationCurrent)
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAudit_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "lead_id", "generation", "score", "confidence",
		"findings", "metadata", "error", "created_at", "updated_at",
	}).AddRow(
		"audit-1", "lead-1", "legacy", 3, 4,
		[]byte(`[{"category":"","issue":"No office hours listed","severity":"","recommendation":""}]`),
		[]byte(nil), "", now, now,
	)

	mock.ExpectQuery(`SELECT id, lead_id, generation`).
		WithArgs("lead-1", "legacy").
		WillReturnRows(rows)

	record, err := s.GetAudit(context.Background(), "lead-1", model.GenerationLegacy)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 3, record.Score)
	assert.Equal(t, 4, record.Confidence)
	require.Len(t, record.Findings, 1)
	assert.Equal(t, "No office hours listed", record.Findings[0].Issue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET status`).
		WithArgs("audited", pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateLeadStatus(context.Background(), "lead-1", model.LeadStatusAudited)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET status`).
		WithArgs("audited", pgxmock.AnyArg(), "lead-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateLeadStatus(context.Background(), "lead-404", model.LeadStatusAudited)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSnapshotViewed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE snapshots SET viewed`).
		WithArgs(pgxmock.AnyArg(), "pub-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkSnapshotViewed(context.Background(), "pub-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
