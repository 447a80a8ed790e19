package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/repository"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestCreateProfile(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("uid-1", "user_abc12345", "a@b.co").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateProfile(context.Background(), domain.Profile{UID: "uid-1", Username: "user_abc12345", Email: "a@b.co"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT uid, username, email, created_at FROM profiles").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT uid, username, email, created_at FROM profiles").
		WithArgs("uid-1").
		WillReturnRows(pgxmock.NewRows([]string{"uid", "username", "email", "created_at"}).
			AddRow("uid-1", "user_abc12345", "a@b.co", created))

	profile, err := repo.GetProfile(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "user_abc12345", profile.Username)
	assert.Equal(t, created, profile.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfileMissingRow(t *testing.T) {
	mock, repo := newMock(t)
	name := "renamed"
	mock.ExpectExec("UPDATE profiles").
		WithArgs("uid-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateProfile(context.Background(), "uid-1", domain.ProfileUpdate{Username: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfileEmptyIsNoop(t *testing.T) {
	mock, repo := newMock(t)
	require.NoError(t, repo.UpdateProfile(context.Background(), "uid-1", domain.ProfileUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRecord(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("INSERT INTO deployment_records").
		WithArgs("uid-1", "dpl_1", "site", "https://site.vercel.app").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.PutRecord(context.Background(), domain.DeploymentRecord{
		UserID: "uid-1", ID: "dpl_1", Name: "site", URL: "https://site.vercel.app",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecords(t *testing.T) {
	mock, repo := newMock(t)
	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	mock.ExpectQuery("SELECT uid, record_id, name, url, created_at FROM deployment_records").
		WithArgs("uid-1").
		WillReturnRows(pgxmock.NewRows([]string{"uid", "record_id", "name", "url", "created_at"}).
			AddRow("uid-1", "dpl_2", "site", "https://b", newer).
			AddRow("uid-1", "dpl_1", "site", "https://a", older))

	records, err := repo.ListRecords(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "dpl_2", records[0].ID)
	assert.Equal(t, "dpl_1", records[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecordsEmpty(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery("SELECT uid, record_id, name, url, created_at FROM deployment_records").
		WithArgs("uid-1").
		WillReturnRows(pgxmock.NewRows([]string{"uid", "record_id", "name", "url", "created_at"}))

	records, err := repo.ListRecords(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestDeleteRecordPropagatesErrors(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("DELETE FROM deployment_records").
		WithArgs("uid-1", "dpl_1").
		WillReturnError(errors.New("connection reset"))

	err := repo.DeleteRecord(context.Background(), "uid-1", "dpl_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDeleteRecordMissingRowSucceeds(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec("DELETE FROM deployment_records").
		WithArgs("uid-1", "gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteRecord(context.Background(), "uid-1", "gone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
