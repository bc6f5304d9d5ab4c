package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a canonical transaction
type TransactionType string

const (
	Sale     TransactionType = "SALE"
	Purchase TransactionType = "PURCHASE"
	Other    TransactionType = "OTHER"
)

// UploadStatus tracks an upload through ingestion
type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadError      UploadStatus = "error"
)

// Terminal reports whether the status can no longer change
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadError
}

// Upload is one ingested statement file
type Upload struct {
	ID               int64
	OwnerID          int64
	Filename         string // original client filename, used for sector detection
	FilePath         string // stored filename in filestore
	Format           string // csv, xlsx, xls
	Status           UploadStatus
	ErrorMessage     string
	JobID            *int64
	TransactionCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transaction is a canonical, normalized statement line
type Transaction struct {
	ID           int64
	Date         time.Time // calendar day, UTC midnight
	Description  string
	Amount       decimal.Decimal // signed, 2 decimals
	Type         TransactionType
	Category     string
	ThirdParty   string
	SourceFileID int64
	CreatedAt    time.Time
}

// DateString returns the transaction day as YYYY-MM-DD
func (t Transaction) DateString() string {
	return t.Date.Format("2006-01-02")
}

// ErrInvalidScope is returned when a read is attempted without an owner
var ErrInvalidScope = errors.New("invalid scope: owner required")

// Scope restricts every analytics read to one owner, optionally one upload.
// UploadID 0 means all uploads of OwnerID.
type Scope struct {
	OwnerID  int64
	UploadID int64
}

// ForOwner scopes reads to all uploads of a user
func ForOwner(ownerID int64) Scope {
	return Scope{OwnerID: ownerID}
}

// ForUpload scopes reads to a single upload of a user
func ForUpload(ownerID, uploadID int64) Scope {
	return Scope{OwnerID: ownerID, UploadID: uploadID}
}

// Valid reports whether the scope names an owner
func (s Scope) Valid() bool {
	return s.OwnerID > 0 && s.UploadID >= 0
}

// IsUpload reports whether the scope is narrowed to one upload
func (s Scope) IsUpload() bool {
	return s.UploadID > 0
}

// DateRange is an inclusive day range; a zero bound is unbounded
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TransactionFilter narrows transaction listings
type TransactionFilter struct {
	Range      DateRange
	Type       TransactionType // empty = any
	Categories []string        // any of; empty = any
}

// Budget is a planned amount for one month and category
type Budget struct {
	ID       int64
	OwnerID  int64
	Period   time.Time // first day of month
	Category string
	Amount   decimal.Decimal
}

// Job represents a background job in the queue
type Job struct {
	ID          int64
	JobType     string
	Payload     string // JSON payload
	Status      string // pending, running, completed, failed
	Progress    int    // 0-100
	Result      string // JSON result or error message
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Granularity selects the period key of a time series
type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// PeriodAmount is a net amount for one period key (YYYY, YYYY-MM or YYYY-MM-DD)
type PeriodAmount struct {
	Period string
	Amount decimal.Decimal
}

// PeriodTotals splits a period into SALE income and PURCHASE expense (negative)
type PeriodTotals struct {
	Period  string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// TypeTotals holds the SALE and PURCHASE sums of a range
type TypeTotals struct {
	Sales     decimal.Decimal
	Purchases decimal.Decimal
}

// CategoryAmount is the summed amount of one category
type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}
