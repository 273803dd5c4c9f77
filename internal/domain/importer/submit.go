package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FACorreiaa/bank-import/internal/queue"
)

// SubmitRequest describes one accepted upload.
type SubmitRequest struct {
	UserID   uuid.UUID
	FileRef  string
	FileName string
	FileType string // CSV | PDF | IMAGE
	Password string // optional, for encrypted documents
}

// Submit creates a PENDING job for an accepted upload and enqueues its work
// item. An optional document password is sealed before it touches storage;
// the plaintext is never persisted.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*ImportJob, error) {
	switch req.FileType {
	case FileTypeCSV, FileTypePDF, FileTypeImage:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, req.FileType)
	}

	job := &ImportJob{
		ID:       uuid.New(),
		UserID:   req.UserID,
		FileRef:  req.FileRef,
		FileName: req.FileName,
		FileType: req.FileType,
		Status:   StatusPending,
	}

	if req.Password != "" {
		credential, err := s.keeper.Seal(req.Password)
		if err != nil {
			return nil, fmt.Errorf("seal credential: %w", err)
		}
		job.Credential = credential
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	item := queue.ImportItem{
		JobID:       job.ID,
		UserID:      job.UserID,
		FileRef:     job.FileRef,
		FileType:    job.FileType,
		HasPassword: len(job.Credential) > 0,
	}
	if err := s.q.Publish(ctx, queue.TopicImport, item); err != nil {
		return nil, fmt.Errorf("enqueue import job: %w", err)
	}

	s.logger.Info("import job submitted",
		"job_id", job.ID, "user_id", job.UserID, "file_type", job.FileType)
	return job, nil
}
