package importer

import (
	"errors"

	"github.com/FACorreiaa/bank-import/internal/domain/protect"
)

var (
	// ErrJobNotFound means the job record disappeared between enqueue and
	// processing. Retrying cannot bring it back.
	ErrJobNotFound = errors.New("import job not found")

	// ErrUserNotFound means the owning user no longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoTransactions is the input-quality failure for files the
	// extractor could not pull a single transaction from.
	ErrNoTransactions = errors.New("no transactions could be extracted from this file")

	// ErrUnsupportedFileType rejects file types the pipeline has no
	// decoder for.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrJobCancelled aborts a run after a cooperative cancellation check.
	ErrJobCancelled = errors.New("import job was cancelled")

	// ErrNotReviewable rejects Confirm calls on jobs outside REVIEW.
	ErrNotReviewable = errors.New("job is not awaiting review")
)

// terminalErrors are failures a retry cannot fix: the file, credential, or
// referenced records are the problem, not the infrastructure.
var terminalErrors = []error{
	ErrJobNotFound,
	ErrUserNotFound,
	ErrNoTransactions,
	ErrUnsupportedFileType,
	protect.ErrBadPassword,
	protect.ErrCredentialCorrupt,
}

// IsTerminal reports whether err should fail the job immediately instead of
// being retried with backoff.
func IsTerminal(err error) bool {
	for _, sentinel := range terminalErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
