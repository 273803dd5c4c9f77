// Package importer drives an uploaded statement file through the extraction
// pipeline as a durable, retryable job and stages the results for review.
package importer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bank-import/internal/domain/account"
	"github.com/FACorreiaa/bank-import/internal/domain/extract"
)

// Status is the lifecycle state of an ImportJob. Transitions are forward
// only; CONFIRMED, FAILED and CANCELLED are terminal.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusProcessing   Status = "PROCESSING"
	StatusParsing      Status = "PARSING"
	StatusCategorizing Status = "CATEGORIZING"
	StatusReview       Status = "REVIEW"
	StatusConfirmed    Status = "CONFIRMED"
	StatusFailed       Status = "FAILED"
	StatusCancelled    Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:      {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing:   {StatusParsing, StatusFailed, StatusCancelled},
	StatusParsing:      {StatusCategorizing, StatusFailed, StatusCancelled},
	StatusCategorizing: {StatusReview, StatusFailed, StatusCancelled},
	StatusReview:       {StatusConfirmed, StatusFailed, StatusCancelled},
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Progress checkpoints. Progress only moves forward; each checkpoint marks a
// completed step of the pipeline.
const (
	ProgressAccepted     = 10
	ProgressDownloaded   = 20
	ProgressDecrypted    = 40
	ProgressParsed       = 60
	ProgressAccounts     = 80
	ProgressTransactions = 90
	ProgressReady        = 100
)

// File types carried on the queue payload. Delimited text and XLSX workbooks
// both travel as FileTypeCSV; the pipeline tells them apart by magic bytes.
const (
	FileTypeCSV   = "CSV"
	FileTypePDF   = "PDF"
	FileTypeImage = "IMAGE"
)

// ImportJob is the orchestration record for one uploaded file. It is mutated
// only by the worker that owns it; stages never write job state themselves.
type ImportJob struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	FileRef          string
	FileName         string
	FileType         string
	Status           Status
	Progress         int
	ErrorMessage     *string
	Credential       []byte // sealed password blob, cleared after first use
	AccountCount     int
	TransactionCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// StagedAccount is a detected account awaiting human confirmation.
type StagedAccount struct {
	ID               uuid.UUID
	JobID            uuid.UUID
	Name             string
	Institution      string
	MaskedNumber     *string
	Type             account.Type
	OpeningBalance   decimal.Decimal
	BalanceEstimated bool
	TransactionCount int
	Confidence       float64
	Color            string
	Icon             string
}

// StagedTransaction is an extracted transaction tied to a staged account.
type StagedTransaction struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	AccountID   uuid.UUID
	Date        time.Time
	Description string
	Amount      decimal.Decimal // magnitude, never negative
	Type        extract.TxType
	Merchant    *string
	Balance     *decimal.Decimal
	Raw         []string
}

// Decision is one reviewer verdict from the confirmation interface.
type Decision struct {
	AccountID    uuid.UUID `json:"accountId"`
	Confirmed    bool      `json:"confirmed"`
	NameOverride *string   `json:"nameOverride,omitempty"`
	TypeOverride *string   `json:"typeOverride,omitempty"`
}

// JobStatus is the read-only projection served to polling clients.
type JobStatus struct {
	JobID    uuid.UUID       `json:"jobId"`
	Status   Status          `json:"status"`
	Progress int             `json:"progress"`
	Error    *string         `json:"error,omitempty"`
	Accounts []AccountStatus `json:"accounts"`
}

// AccountStatus is one staged account inside a JobStatus, with its
// transactions capped for response size.
type AccountStatus struct {
	AccountID        uuid.UUID           `json:"accountId"`
	Name             string              `json:"name"`
	Institution      string              `json:"institution"`
	MaskedNumber     *string             `json:"maskedNumber,omitempty"`
	Type             account.Type        `json:"type"`
	OpeningBalance   decimal.Decimal     `json:"openingBalance"`
	BalanceEstimated bool                `json:"balanceEstimated"`
	TransactionCount int                 `json:"transactionCount"`
	Confidence       float64             `json:"confidence"`
	Color            string              `json:"color"`
	Icon             string              `json:"icon"`
	Transactions     []TransactionStatus `json:"transactions"`
}

// TransactionStatus is one transaction inside an AccountStatus.
type TransactionStatus struct {
	TransactionID uuid.UUID        `json:"transactionId"`
	Date          time.Time        `json:"date"`
	Description   string           `json:"description"`
	Amount        decimal.Decimal  `json:"amount"`
	Type          extract.TxType   `json:"type"`
	Merchant      *string          `json:"merchant,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
}
