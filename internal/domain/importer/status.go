package importer

import (
	"context"

	"github.com/google/uuid"
)

// Status returns the polling projection for one job: last-known-good status
// and progress plus the staged accounts with a bounded transaction sample.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (*JobStatus, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.repo.JobAccounts(ctx, jobID, s.cfg.StatusTxLimit)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []AccountStatus{}
	}

	return &JobStatus{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.ErrorMessage,
		Accounts: accounts,
	}, nil
}

// Confirm applies reviewer decisions: confirmed accounts and their
// transactions become permanent records, everything else is discarded, and
// the job moves to CONFIRMED. Only jobs in REVIEW can be confirmed.
func (s *Service) Confirm(ctx context.Context, jobID uuid.UUID, decisions []Decision) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusReview {
		return ErrNotReviewable
	}
	if err := s.repo.Materialize(ctx, jobID, decisions); err != nil {
		return err
	}
	s.logger.Info("import job confirmed", "job_id", jobID, "decisions", len(decisions))
	return nil
}

// Cancel requests cooperative cancellation. A running worker notices the
// status at its next stage gate and discards partial output; results staged
// so far are removed here for jobs not currently running.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	if err := s.repo.SetCancelled(ctx, jobID); err != nil {
		return err
	}
	if err := s.repo.DeleteResults(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("import job cancelled", "job_id", jobID)
	return nil
}
