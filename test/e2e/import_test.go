// Package e2etest runs the import pipeline end to end against real file
// storage: upload, submit, queue hand-off, extraction, review projection and
// confirmation. Only the database is faked.
package e2etest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/bank-import/internal/domain/importer"
	"github.com/FACorreiaa/bank-import/internal/domain/protect"
	"github.com/FACorreiaa/bank-import/internal/queue"
	"github.com/FACorreiaa/bank-import/pkg/storage"
)

const bancolombiaCSV = "BANCOLOMBIA S.A.\n" +
	"Cuenta de Ahorros No. 12345678901234\n" +
	"Fecha;Descripción;Valor;Saldo\n" +
	"01/12/2023;Pago a Netflix;-44.900,00;1.255.100,00\n" +
	"05/12/2023;Transferencia recibida;500.000,00;1.755.100,00\n" +
	"10/12/2023;Compra en Exito;-120.000,00;1.635.100,00\n"

// memRepo keeps the job store in memory; everything else in the flow is the
// real implementation.
type memRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*importer.ImportJob
	accounts []importer.StagedAccount
	txns     []importer.StagedTransaction
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[uuid.UUID]*importer.ImportJob)}
}

func (r *memRepo) CreateJob(_ context.Context, job *importer.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memRepo) GetJob(_ context.Context, id uuid.UUID) (*importer.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, importer.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *memRepo) Advance(_ context.Context, id uuid.UUID, status importer.Status, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return importer.ErrJobNotFound
	}
	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (r *memRepo) SetFailed(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok && !job.Status.Terminal() {
		job.Status = importer.StatusFailed
		job.ErrorMessage = &message
	}
	return nil
}

func (r *memRepo) SetCancelled(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok && !job.Status.Terminal() {
		job.Status = importer.StatusCancelled
	}
	return nil
}

func (r *memRepo) ClearCredential(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Credential = nil
	}
	return nil
}

func (r *memRepo) UserExists(context.Context, uuid.UUID) (bool, error) { return true, nil }

func (r *memRepo) ReplaceResults(_ context.Context, jobID uuid.UUID, accounts []importer.StagedAccount, transactions []importer.StagedTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = accounts
	r.txns = transactions
	if job, ok := r.jobs[jobID]; ok {
		job.AccountCount = len(accounts)
		job.TransactionCount = len(transactions)
	}
	return nil
}

func (r *memRepo) DeleteResults(context.Context, uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts, r.txns = nil, nil
	return nil
}

func (r *memRepo) JobAccounts(_ context.Context, jobID uuid.UUID, txLimit int) ([]importer.AccountStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]importer.AccountStatus, 0, len(r.accounts))
	for _, acc := range r.accounts {
		status := importer.AccountStatus{
			AccountID:        acc.ID,
			Name:             acc.Name,
			Institution:      acc.Institution,
			MaskedNumber:     acc.MaskedNumber,
			Type:             acc.Type,
			OpeningBalance:   acc.OpeningBalance,
			BalanceEstimated: acc.BalanceEstimated,
			TransactionCount: acc.TransactionCount,
			Confidence:       acc.Confidence,
			Color:            acc.Color,
			Icon:             acc.Icon,
		}
		for _, txn := range r.txns {
			if txn.AccountID != acc.ID || len(status.Transactions) >= txLimit {
				continue
			}
			status.Transactions = append(status.Transactions, importer.TransactionStatus{
				TransactionID: txn.ID,
				Date:          txn.Date,
				Description:   txn.Description,
				Amount:        txn.Amount,
				Type:          txn.Type,
				Merchant:      txn.Merchant,
				Balance:       txn.Balance,
			})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (r *memRepo) Materialize(_ context.Context, jobID uuid.UUID, _ []importer.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != importer.StatusReview {
		return importer.ErrNotReviewable
	}
	job.Status = importer.StatusConfirmed
	r.accounts, r.txns = nil, nil
	return nil
}

// memQueue records publishes; the test redelivers them by hand.
type memQueue struct {
	mu        sync.Mutex
	published []queue.Message
}

func (q *memQueue) Publish(_ context.Context, topic string, payload any) error {
	data, err := queue.Encode(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, queue.Message{ID: uuid.New(), Topic: topic, Payload: data, Attempts: 1})
	return nil
}

func (q *memQueue) Receive(context.Context, string) (*queue.Message, error) {
	return nil, queue.ErrEmpty
}

func (q *memQueue) Ack(context.Context, uuid.UUID) error { return nil }

func (q *memQueue) Nack(context.Context, uuid.UUID, time.Duration) error { return nil }

func (q *memQueue) RequeueExpired(context.Context) (int, error) { return 0, nil }

func (q *memQueue) byTopic(topic string) []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Message
	for _, msg := range q.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

type pipeline struct {
	svc   *importer.Service
	repo  *memRepo
	q     *memQueue
	files storage.Storage
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	keeper, err := protect.NewKeeper("e2e-secret")
	require.NoError(t, err)

	repo := newMemRepo()
	q := &memQueue{}
	svc := importer.NewService(repo, files, q, keeper, nil, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), importer.Config{StatusTxLimit: 10})
	return &pipeline{svc: svc, repo: repo, q: q, files: files}
}

// run uploads content, submits it as a job, and delivers the queued work
// item the way a worker would.
func (p *pipeline) run(t *testing.T, userID uuid.UUID, filename, contentType string, content []byte) *importer.ImportJob {
	t.Helper()
	ctx := context.Background()

	info, err := p.files.Upload(ctx, userID, filename, contentType, bytes.NewReader(content))
	require.NoError(t, err)

	job, err := p.svc.Submit(ctx, importer.SubmitRequest{
		UserID:   userID,
		FileRef:  info.ID.String(),
		FileName: filename,
		FileType: importer.FileTypeCSV,
	})
	require.NoError(t, err)

	items := p.q.byTopic(queue.TopicImport)
	require.Len(t, items, 1)
	require.NoError(t, p.svc.HandleImport(ctx, items[0]))
	return job
}

func TestImportPipeline_CSV(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	userID := uuid.New()

	job := p.run(t, userID, "extracto_diciembre.csv", "text/csv", []byte(bancolombiaCSV))

	status, err := p.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importer.StatusReview, status.Status)
	assert.Equal(t, importer.ProgressReady, status.Progress)
	require.Len(t, status.Accounts, 1)

	acc := status.Accounts[0]
	assert.Equal(t, "Bancolombia", acc.Institution)
	require.NotNil(t, acc.MaskedNumber)
	assert.Equal(t, "1234", *acc.MaskedNumber)
	assert.Len(t, acc.Transactions, 3)

	suggestions := p.q.byTopic(queue.TopicCategorySuggestion)
	assert.Len(t, suggestions, 3)

	require.NoError(t, p.svc.Confirm(ctx, job.ID, []importer.Decision{
		{AccountID: acc.AccountID, Confirmed: true},
	}))
	confirmed, err := p.repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importer.StatusConfirmed, confirmed.Status)
}

func TestImportPipeline_XLSX(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	userID := uuid.New()

	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)
	rows := [][]any{
		{"Fecha", "Descripción", "Valor", "Saldo"},
		{"01/12/2023", "Pago a Netflix", "-44.900,00", "1.255.100,00"},
		{"05/12/2023", "Transferencia recibida", "500.000,00", "1.755.100,00"},
	}
	for i, row := range rows {
		require.NoError(t, workbook.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row))
	}
	var buf bytes.Buffer
	_, err := workbook.WriteTo(&buf)
	require.NoError(t, err)

	job := p.run(t, userID, "extracto.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())

	status, err := p.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importer.StatusReview, status.Status)
	require.Len(t, status.Accounts, 1)
	require.Len(t, status.Accounts[0].Transactions, 2)

	var total decimal.Decimal
	for _, txn := range status.Accounts[0].Transactions {
		assert.False(t, txn.Amount.IsNegative())
		total = total.Add(txn.Amount)
	}
	assert.True(t, total.Equal(decimal.RequireFromString("544900")),
		"amounts should be stored as magnitudes: got %s", total)
}

func TestImportPipeline_EmptyFileFails(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	userID := uuid.New()

	info, err := p.files.Upload(ctx, userID, "vacio.csv", "text/csv",
		strings.NewReader("Fecha;Descripción;Valor;Saldo\n"))
	require.NoError(t, err)

	job, err := p.svc.Submit(ctx, importer.SubmitRequest{
		UserID:   userID,
		FileRef:  info.ID.String(),
		FileName: "vacio.csv",
		FileType: importer.FileTypeCSV,
	})
	require.NoError(t, err)

	items := p.q.byTopic(queue.TopicImport)
	require.Len(t, items, 1)
	require.Error(t, p.svc.HandleImport(ctx, items[0]))

	failed, err := p.repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importer.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "No transactions")
}
