package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/bank-import/internal/domain/account"
	"github.com/FACorreiaa/bank-import/internal/domain/encoding"
	"github.com/FACorreiaa/bank-import/internal/domain/extract"
	"github.com/FACorreiaa/bank-import/internal/domain/layout"
	"github.com/FACorreiaa/bank-import/internal/domain/protect"
	"github.com/FACorreiaa/bank-import/internal/queue"
	"github.com/FACorreiaa/bank-import/pkg/retry"
	"github.com/FACorreiaa/bank-import/pkg/storage"
)

// xlsxMagic is the ZIP local-file header; XLSX workbooks arrive under the
// CSV file type and are told apart by it.
var xlsxMagic = []byte("PK\x03\x04")

// FileStore is the slice of pkg/storage the pipeline needs: fetching the
// immutable uploaded bytes.
type FileStore interface {
	Download(ctx context.Context, userID uuid.UUID, fileID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error)
}

// Notifier receives job lifecycle hand-offs. Implementations live outside
// this module; NoopNotifier is used when none is wired.
type Notifier interface {
	JobReady(ctx context.Context, job *ImportJob)
	JobFailed(ctx context.Context, job *ImportJob, message string)
}

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

func (NoopNotifier) JobReady(context.Context, *ImportJob)          {}
func (NoopNotifier) JobFailed(context.Context, *ImportJob, string) {}

// Config tunes the orchestrator.
type Config struct {
	// StatusTxLimit caps transactions per account in status projections.
	StatusTxLimit int
	// DownloadRetry is the in-process backoff for fetching file bytes.
	DownloadRetry retry.Options
}

func (c *Config) defaults() {
	if c.StatusTxLimit <= 0 {
		c.StatusTxLimit = 50
	}
}

// Service is the import job orchestrator. It is the only writer of job
// status and progress; pipeline stages return values and errors.
type Service struct {
	repo       Repository
	files      FileStore
	q          queue.Queue
	keeper     *protect.Keeper
	resolver   *encoding.Resolver
	classifier *layout.Classifier
	extractor  *extract.Extractor
	ocr        extract.OCRClient
	notifier   Notifier
	logger     *slog.Logger
	cfg        Config
}

func NewService(
	repo Repository,
	files FileStore,
	q queue.Queue,
	keeper *protect.Keeper,
	ocr extract.OCRClient,
	notifier Notifier,
	logger *slog.Logger,
	cfg Config,
) *Service {
	cfg.defaults()
	if ocr == nil {
		ocr = extract.NoopOCR{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Service{
		repo:       repo,
		files:      files,
		q:          q,
		keeper:     keeper,
		resolver:   encoding.NewResolver(),
		classifier: layout.NewClassifier(layout.DefaultRegistry()),
		extractor:  extract.NewExtractor(logger),
		ocr:        ocr,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// HandleImport is the queue handler for the import topic. Transient errors
// bubble up so the worker pool schedules a redelivery; terminal errors mark
// the job FAILED here and are wrapped so the pool drops the message.
func (s *Service) HandleImport(ctx context.Context, msg queue.Message) error {
	var item queue.ImportItem
	if err := queue.Decode(&msg, &item); err != nil {
		return &retry.Permanent{Err: err}
	}

	logger := s.logger.With("job_id", item.JobID, "user_id", item.UserID, "file_type", item.FileType)

	err := s.process(ctx, item, logger)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Shutdown mid-job; the lease expires and another worker reruns
		// the job from the top.
		return err
	}
	if errors.Is(err, ErrJobCancelled) {
		logger.Info("import job cancelled, discarding work item")
		return &retry.Permanent{Err: err}
	}
	if IsTerminal(err) {
		s.failJob(ctx, item.JobID, err, logger)
		return &retry.Permanent{Err: err}
	}
	logger.Warn("import attempt failed", "error", err)
	return err
}

// OnImportExhausted marks a job FAILED once its last delivery attempt is
// spent. SetFailed is a no-op for jobs already in a terminal state, so a
// cancelled job is not resurrected as FAILED.
func (s *Service) OnImportExhausted(ctx context.Context, msg queue.Message, cause error) {
	var item queue.ImportItem
	if err := queue.Decode(&msg, &item); err != nil {
		s.logger.Error("cannot decode exhausted import item", "error", err)
		return
	}
	s.failJob(ctx, item.JobID, cause, s.logger.With("job_id", item.JobID))
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, cause error, logger *slog.Logger) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("cannot load job to fail it", "error", err)
		return
	}
	if job.Status.Terminal() {
		return
	}
	message := userMessage(cause)
	if err := s.repo.SetFailed(ctx, jobID, message); err != nil {
		logger.Error("cannot mark job failed", "error", err)
		return
	}
	logger.Error("import job failed", "reason", message, "error", cause)
	job.Status = StatusFailed
	job.ErrorMessage = &message
	s.notifier.JobFailed(ctx, job, message)
}

func (s *Service) process(ctx context.Context, item queue.ImportItem, logger *slog.Logger) error {
	job, err := s.repo.GetJob(ctx, item.JobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() || job.Status == StatusReview {
		// Redelivery of an already-finished job; at-least-once delivery
		// makes this normal, not an error.
		logger.Info("skipping redelivered job", "status", job.Status)
		return nil
	}

	exists, err := s.repo.UserExists(ctx, job.UserID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	if err := s.repo.Advance(ctx, job.ID, StatusProcessing, ProgressAccepted); err != nil {
		return err
	}

	data, err := s.download(ctx, job, logger)
	if err != nil {
		return err
	}
	if err := s.repo.Advance(ctx, job.ID, StatusProcessing, ProgressDownloaded); err != nil {
		return err
	}

	if cancelled, err := s.checkCancelled(ctx, job.ID); err != nil || cancelled {
		return err
	}

	data, err = s.unlock(ctx, job, data)
	if err != nil {
		return err
	}
	if err := s.repo.Advance(ctx, job.ID, StatusProcessing, ProgressDecrypted); err != nil {
		return err
	}

	if cancelled, err := s.checkCancelled(ctx, job.ID); err != nil || cancelled {
		return err
	}

	if err := s.repo.Advance(ctx, job.ID, StatusParsing, ProgressDecrypted); err != nil {
		return err
	}
	extraction, err := s.extract(ctx, job, data, logger)
	if err != nil {
		return err
	}
	if len(extraction.result.Transactions) == 0 {
		return ErrNoTransactions
	}
	if err := s.repo.Advance(ctx, job.ID, StatusParsing, ProgressParsed); err != nil {
		return err
	}
	logger.Info("extraction complete",
		"transactions", len(extraction.result.Transactions),
		"skipped_rows", extraction.result.SkippedRows,
		"institution", extraction.institution,
		"encoding", extraction.encoding)

	if cancelled, err := s.checkCancelled(ctx, job.ID); err != nil || cancelled {
		return err
	}

	if err := s.repo.Advance(ctx, job.ID, StatusCategorizing, ProgressParsed); err != nil {
		return err
	}

	staged, transactions := stageResults(job, extraction)
	if err := s.repo.ReplaceResults(ctx, job.ID, []StagedAccount{staged}, transactions); err != nil {
		return err
	}
	if err := s.repo.Advance(ctx, job.ID, StatusCategorizing, ProgressAccounts); err != nil {
		return err
	}
	if err := s.repo.Advance(ctx, job.ID, StatusCategorizing, ProgressTransactions); err != nil {
		return err
	}

	if cancelled, err := s.checkCancelled(ctx, job.ID); err != nil || cancelled {
		return err
	}

	for _, txn := range transactions {
		payload := queue.CategoryItem{
			TransactionID: txn.ID,
			UserID:        job.UserID,
			Description:   txn.Description,
			Amount:        txn.Amount.String(),
			Type:          string(txn.Type),
		}
		if txn.Merchant != nil {
			payload.Merchant = *txn.Merchant
		}
		if err := s.q.Publish(ctx, queue.TopicCategorySuggestion, payload); err != nil {
			return fmt.Errorf("enqueue category suggestion: %w", err)
		}
	}

	if err := s.repo.Advance(ctx, job.ID, StatusReview, ProgressReady); err != nil {
		return err
	}
	if job, err := s.repo.GetJob(ctx, job.ID); err == nil {
		s.notifier.JobReady(ctx, job)
	}
	logger.Info("import job ready for review",
		"accounts", 1, "transactions", len(transactions))
	return nil
}

// checkCancelled is the cooperative cancellation gate run before each major
// stage. A cancelled job has its partial staging output removed.
func (s *Service) checkCancelled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status != StatusCancelled {
		return false, nil
	}
	if err := s.repo.DeleteResults(ctx, jobID); err != nil {
		s.logger.Error("cannot discard cancelled job results", "job_id", jobID, "error", err)
	}
	return true, &retry.Permanent{Err: ErrJobCancelled}
}

func (s *Service) download(ctx context.Context, job *ImportJob, logger *slog.Logger) ([]byte, error) {
	fileID, err := uuid.Parse(job.FileRef)
	if err != nil {
		return nil, fmt.Errorf("%w: bad file reference %q", ErrJobNotFound, job.FileRef)
	}

	var data []byte
	err = retry.Do(ctx, logger, func() error {
		reader, _, err := s.files.Download(ctx, job.UserID, fileID)
		if err != nil {
			return fmt.Errorf("download %s: %w", job.FileRef, err)
		}
		defer reader.Close()
		data, err = io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("read %s: %w", job.FileRef, err)
		}
		return nil
	}, s.cfg.DownloadRetry)
	return data, err
}

// unlock opens the sealed credential, decrypts the file with it and clears
// the credential. The stored password never survives its first use.
func (s *Service) unlock(ctx context.Context, job *ImportJob, data []byte) ([]byte, error) {
	if len(job.Credential) == 0 {
		return data, nil
	}

	password, err := s.keeper.Open(job.Credential)
	if err != nil {
		return nil, err
	}

	if protect.IsPDF(data) && protect.IsEncryptedPDF(data) {
		data, err = protect.DecryptPDF(data, password)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.ClearCredential(ctx, job.ID); err != nil {
		return nil, err
	}
	job.Credential = nil
	return data, nil
}

// extraction carries one pipeline pass's output into staging.
type extraction struct {
	result      *extract.Result
	institution string
	confidence  float64
	metaRows    [][]string
	encoding    string
}

func (s *Service) extract(ctx context.Context, job *ImportJob, data []byte, logger *slog.Logger) (*extraction, error) {
	switch job.FileType {
	case FileTypeCSV:
		return s.extractTabular(data, logger)
	case FileTypePDF:
		text, err := extract.PDFText(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoTransactions, err)
		}
		return &extraction{result: s.extractor.ExtractDocument(text)}, nil
	case FileTypeImage:
		text, err := s.ocr.RecognizeText(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
		}
		return &extraction{result: s.extractor.ExtractDocument(text)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, job.FileType)
	}
}

func (s *Service) extractTabular(data []byte, logger *slog.Logger) (*extraction, error) {
	var table *extract.Table
	var err error
	if bytes.HasPrefix(data, xlsxMagic) {
		table, err = extract.DecodeWorkbook(bytes.NewReader(data))
	} else {
		decoded := s.resolver.Decode(data)
		if decoded.Lossy {
			logger.Warn("lossy decode", "encoding", decoded.Encoding)
		}
		table, err = extract.DecodeDelimited(decoded.Text)
		if table != nil {
			table.Encoding = decoded.Encoding
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTransactions, err)
	}

	cls := s.classifier.Classify(table.Headers, table.ColumnCount())
	result := s.extractor.ExtractTable(table, cls)
	return &extraction{
		result:      result,
		institution: cls.Pattern.Institution,
		confidence:  cls.Confidence,
		metaRows:    table.MetaRows,
		encoding:    table.Encoding,
	}, nil
}

// stageResults turns one extraction pass into staging rows. The inferencer
// aggregates the whole file into a single candidate account.
func stageResults(job *ImportJob, ex *extraction) (StagedAccount, []StagedTransaction) {
	detected := account.Infer(account.Input{
		Transactions: ex.result.Transactions,
		Institution:  ex.institution,
		FileName:     job.FileName,
		MetaRows:     ex.metaRows,
		Confidence:   ex.confidence,
	})

	staged := StagedAccount{
		ID:               uuid.New(),
		JobID:            job.ID,
		Name:             detected.Name,
		Institution:      detected.Institution,
		Type:             detected.Type,
		OpeningBalance:   detected.OpeningBalance,
		BalanceEstimated: detected.BalanceEstimated,
		TransactionCount: detected.TransactionCount,
		Confidence:       detected.Confidence,
		Color:            detected.Color,
		Icon:             detected.Icon,
	}
	if detected.MaskedNumber != "" {
		masked := detected.MaskedNumber
		staged.MaskedNumber = &masked
	}

	transactions := make([]StagedTransaction, 0, len(ex.result.Transactions))
	for _, txn := range ex.result.Transactions {
		st := StagedTransaction{
			ID:          uuid.New(),
			JobID:       job.ID,
			AccountID:   staged.ID,
			Date:        txn.Date,
			Description: txn.Description,
			Amount:      txn.Amount,
			Type:        txn.Type,
			Balance:     txn.Balance,
			Raw:         txn.Raw,
		}
		if txn.Merchant != "" {
			merchant := txn.Merchant
			st.Merchant = &merchant
		}
		transactions = append(transactions, st)
	}
	return staged, transactions
}

// userMessage maps pipeline failures to the message stored on the job and
// shown to the uploader.
func userMessage(err error) string {
	switch {
	case errors.Is(err, protect.ErrBadPassword):
		return "The password provided could not open this file. Please check it and try again."
	case errors.Is(err, protect.ErrCredentialCorrupt):
		return "The stored file password could not be recovered. Please upload the file again."
	case errors.Is(err, ErrNoTransactions):
		return "No transactions could be read from this file. Please check the file and try again."
	case errors.Is(err, ErrUnsupportedFileType):
		return "This file type is not supported."
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrJobNotFound):
		return "This import can no longer be processed."
	default:
		return "The import failed after several attempts. Please try again."
	}
}
