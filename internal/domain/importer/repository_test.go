package importer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestAdvance(t *testing.T) {
	t.Run("clamps progress and stamps completion", func(t *testing.T) {
		repo, mock := mockRepo(t)
		jobID := uuid.New()

		mock.ExpectExec(`UPDATE import_jobs`).
			WithArgs(jobID, StatusReview, 100).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Advance(context.Background(), jobID, StatusReview, 100))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown job", func(t *testing.T) {
		repo, mock := mockRepo(t)
		jobID := uuid.New()

		mock.ExpectExec(`UPDATE import_jobs`).
			WithArgs(jobID, StatusProcessing, 10).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Advance(context.Background(), jobID, StatusProcessing, 10)
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestSetFailed(t *testing.T) {
	t.Run("guards terminal statuses in the update itself", func(t *testing.T) {
		repo, mock := mockRepo(t)
		jobID := uuid.New()

		mock.ExpectExec(`UPDATE import_jobs`).
			WithArgs(jobID, StatusFailed, "bad input",
				StatusConfirmed, StatusFailed, StatusCancelled).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		// A job that raced into CANCELLED matches no row; that is not an
		// error, the terminal status simply wins.
		require.NoError(t, repo.SetFailed(context.Background(), jobID, "bad input"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetJobNotFound(t *testing.T) {
	repo, mock := mockRepo(t)
	jobID := uuid.New()

	mock.ExpectQuery(`SELECT id, user_id, file_ref`).
		WithArgs(jobID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetJob(context.Background(), jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestClearCredential(t *testing.T) {
	repo, mock := mockRepo(t)
	jobID := uuid.New()

	mock.ExpectExec(`UPDATE import_jobs SET credential = NULL`).
		WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.ClearCredential(context.Background(), jobID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeRequiresReview(t *testing.T) {
	repo, mock := mockRepo(t)
	jobID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE import_jobs SET status`).
		WithArgs(jobID, StatusConfirmed, StatusReview).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Materialize(context.Background(), jobID, []Decision{{AccountID: uuid.New(), Confirmed: true}})
	assert.ErrorIs(t, err, ErrNotReviewable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteResults(t *testing.T) {
	repo, mock := mockRepo(t)
	jobID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM staged_transactions`).
		WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM staged_accounts`).
		WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteResults(context.Background(), jobID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
