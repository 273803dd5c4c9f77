package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses. Narrowing to an
// interface lets tests substitute a mock connection.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is the persistence surface the orchestrator runs against.
// All derived records are scoped by job ID, so retried jobs replace their
// own output instead of duplicating it.
type Repository interface {
	CreateJob(ctx context.Context, job *ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*ImportJob, error)

	// Advance moves the job to status and raises progress. Progress is
	// clamped to never decrease so late checkpoint writes from a retried
	// run cannot roll the visible progress back.
	Advance(ctx context.Context, id uuid.UUID, status Status, progress int) error
	SetFailed(ctx context.Context, id uuid.UUID, message string) error
	SetCancelled(ctx context.Context, id uuid.UUID) error
	ClearCredential(ctx context.Context, id uuid.UUID) error

	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)

	ReplaceResults(ctx context.Context, jobID uuid.UUID, accounts []StagedAccount, transactions []StagedTransaction) error
	DeleteResults(ctx context.Context, jobID uuid.UUID) error
	JobAccounts(ctx context.Context, jobID uuid.UUID, txLimit int) ([]AccountStatus, error)

	// Materialize copies confirmed staged records into the permanent
	// accounts/transactions tables, drops the rest of the staging set and
	// marks the job CONFIRMED, all in one transaction guarded on REVIEW.
	Materialize(ctx context.Context, jobID uuid.UUID, decisions []Decision) error
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	query := `
		INSERT INTO import_jobs (id, user_id, file_ref, file_name, file_type, status, progress, credential, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query,
		job.ID, job.UserID, job.FileRef, job.FileName, job.FileType, job.Status, job.Progress, job.Credential)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	query := `
		SELECT id, user_id, file_ref, file_name, file_type, status, progress,
		       error_message, credential, account_count, transaction_count,
		       created_at, updated_at, completed_at
		FROM import_jobs
		WHERE id = $1
	`
	var job ImportJob
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.UserID,
		&job.FileRef,
		&job.FileName,
		&job.FileType,
		&job.Status,
		&job.Progress,
		&job.ErrorMessage,
		&job.Credential,
		&job.AccountCount,
		&job.TransactionCount,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return &job, nil
}

func (r *PostgresRepository) Advance(ctx context.Context, id uuid.UUID, status Status, progress int) error {
	query := `
		UPDATE import_jobs
		SET status = $2,
		    progress = GREATEST(progress, $3),
		    completed_at = CASE WHEN $3 >= 100 THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status, progress)
	if err != nil {
		return fmt.Errorf("advance job %s to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresRepository) SetFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE import_jobs
		SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, id, StatusFailed, message,
		StatusConfirmed, StatusFailed, StatusCancelled)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) SetCancelled(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE import_jobs
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, id, StatusCancelled,
		StatusConfirmed, StatusFailed, StatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) ClearCredential(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE import_jobs SET credential = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear credential for job %s: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", userID, err)
	}
	return exists, nil
}

func (r *PostgresRepository) ReplaceResults(ctx context.Context, jobID uuid.UUID, accounts []StagedAccount, transactions []StagedTransaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace results: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteResultsTx(ctx, tx, jobID); err != nil {
		return err
	}

	for i := range accounts {
		acc := &accounts[i]
		if acc.ID == uuid.Nil {
			acc.ID = uuid.New()
		}
		acc.JobID = jobID
		_, err = tx.Exec(ctx, `
			INSERT INTO staged_accounts
				(id, job_id, name, institution, masked_number, type,
				 opening_balance, balance_estimated, transaction_count,
				 confidence, color, icon)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, acc.ID, jobID, acc.Name, acc.Institution, acc.MaskedNumber, acc.Type,
			acc.OpeningBalance, acc.BalanceEstimated, acc.TransactionCount,
			acc.Confidence, acc.Color, acc.Icon)
		if err != nil {
			return fmt.Errorf("insert staged account: %w", err)
		}
	}

	for i := range transactions {
		txn := &transactions[i]
		if txn.ID == uuid.Nil {
			txn.ID = uuid.New()
		}
		txn.JobID = jobID
		_, err = tx.Exec(ctx, `
			INSERT INTO staged_transactions
				(id, job_id, account_id, occurred_on, description, amount,
				 type, merchant, balance, raw)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, txn.ID, jobID, txn.AccountID, txn.Date, txn.Description, txn.Amount,
			txn.Type, txn.Merchant, txn.Balance, txn.Raw)
		if err != nil {
			return fmt.Errorf("insert staged transaction: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE import_jobs SET account_count = $2, transaction_count = $3, updated_at = NOW()
		WHERE id = $1
	`, jobID, len(accounts), len(transactions))
	if err != nil {
		return fmt.Errorf("update job counts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace results: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteResults(ctx context.Context, jobID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete results: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteResultsTx(ctx, tx, jobID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete results: %w", err)
	}
	return nil
}

func deleteResultsTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM staged_transactions WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete staged transactions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM staged_accounts WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete staged accounts: %w", err)
	}
	return nil
}

func (r *PostgresRepository) JobAccounts(ctx context.Context, jobID uuid.UUID, txLimit int) ([]AccountStatus, error) {
	query := `
		SELECT id, name, institution, masked_number, type, opening_balance,
		       balance_estimated, transaction_count, confidence, color, icon
		FROM staged_accounts
		WHERE job_id = $1
		ORDER BY confidence DESC, name
	`
	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list staged accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountStatus
	for rows.Next() {
		var acc AccountStatus
		if err := rows.Scan(
			&acc.AccountID,
			&acc.Name,
			&acc.Institution,
			&acc.MaskedNumber,
			&acc.Type,
			&acc.OpeningBalance,
			&acc.BalanceEstimated,
			&acc.TransactionCount,
			&acc.Confidence,
			&acc.Color,
			&acc.Icon,
		); err != nil {
			return nil, fmt.Errorf("scan staged account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list staged accounts: %w", err)
	}

	for i := range accounts {
		transactions, err := r.accountTransactions(ctx, accounts[i].AccountID, txLimit)
		if err != nil {
			return nil, err
		}
		accounts[i].Transactions = transactions
	}
	return accounts, nil
}

func (r *PostgresRepository) accountTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]TransactionStatus, error) {
	query := `
		SELECT id, occurred_on, description, amount, type, merchant, balance
		FROM staged_transactions
		WHERE account_id = $1
		ORDER BY occurred_on DESC, id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list staged transactions: %w", err)
	}
	defer rows.Close()

	var transactions []TransactionStatus
	for rows.Next() {
		var txn TransactionStatus
		if err := rows.Scan(
			&txn.TransactionID,
			&txn.Date,
			&txn.Description,
			&txn.Amount,
			&txn.Type,
			&txn.Merchant,
			&txn.Balance,
		); err != nil {
			return nil, fmt.Errorf("scan staged transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func (r *PostgresRepository) Materialize(ctx context.Context, jobID uuid.UUID, decisions []Decision) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE import_jobs SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, jobID, StatusConfirmed, StatusReview)
	if err != nil {
		return fmt.Errorf("confirm job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotReviewable
	}

	for _, decision := range decisions {
		if !decision.Confirmed {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO accounts (id, user_id, name, institution, masked_number, type, opening_balance, color, icon, created_at)
			SELECT sa.id, j.user_id,
			       COALESCE($3, sa.name),
			       sa.institution, sa.masked_number,
			       COALESCE($4, sa.type),
			       sa.opening_balance, sa.color, sa.icon, NOW()
			FROM staged_accounts sa
			JOIN import_jobs j ON j.id = sa.job_id
			WHERE sa.id = $1 AND sa.job_id = $2
			ON CONFLICT (id) DO NOTHING
		`, decision.AccountID, jobID, decision.NameOverride, decision.TypeOverride)
		if err != nil {
			return fmt.Errorf("materialize account %s: %w", decision.AccountID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (id, user_id, account_id, occurred_on, description, amount, type, merchant, created_at)
			SELECT st.id, j.user_id, st.account_id, st.occurred_on, st.description, st.amount, st.type, st.merchant, NOW()
			FROM staged_transactions st
			JOIN import_jobs j ON j.id = st.job_id
			WHERE st.account_id = $1 AND st.job_id = $2
			ON CONFLICT (id) DO NOTHING
		`, decision.AccountID, jobID)
		if err != nil {
			return fmt.Errorf("materialize transactions for account %s: %w", decision.AccountID, err)
		}
	}

	// Staged records are consumed either way; unconfirmed ones are simply
	// not copied first.
	if err := deleteResultsTx(ctx, tx, jobID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit confirm: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
