// Package ingest turns a decoded statement into canonical transactions and
// persists them for one upload, exactly once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cashlens/internal/classifier"
	"cashlens/internal/database"
	"cashlens/internal/decoder"
	"cashlens/internal/logger"
	"cashlens/internal/models"
	"cashlens/internal/normalize"
)

var (
	ErrMissingDateColumn   = normalize.ErrMissingDateColumn
	ErrNoValidTransactions = errors.New("no valid transactions found, check column names and data format")
	ErrIngestionInProgress = errors.New("ingestion already in progress for this upload")
	ErrDuplicateUpload     = errors.New("a file with this name was already imported")
)

// Store is the persistence the pipeline writes through
type Store interface {
	CompleteUpload(ctx context.Context, uploadID int64, txns []models.Transaction) error
	FailUpload(id int64, errMsg string) error
}

// Result is a parsed statement before persistence
type Result struct {
	Roles        normalize.RoleMap
	Rows         int
	Skipped      int
	Transactions []models.Transaction
}

// Parser converts decoded rows into transactions. It holds no state per call.
type Parser struct {
	classifier *classifier.Classifier
}

// NewParser creates a parser that classifies rows with c
func NewParser(c *classifier.Classifier) *Parser {
	return &Parser{classifier: c}
}

// Parse decodes r and converts every usable row. Rows without a parseable
// date or with a zero amount are skipped and counted.
func (p *Parser) Parse(r io.Reader, format decoder.Format) (*Result, error) {
	table, err := decoder.Decode(r, format)
	if err != nil {
		return nil, err
	}
	roles, err := normalize.Normalize(table.Headers)
	if err != nil {
		return nil, err
	}

	res := &Result{Roles: roles, Rows: len(table.Rows)}
	for _, row := range table.Rows {
		t, ok := p.convert(table, row, roles)
		if !ok {
			res.Skipped++
			continue
		}
		res.Transactions = append(res.Transactions, t)
	}
	return res, nil
}

func (p *Parser) convert(table *decoder.Table, row []decoder.Cell, roles normalize.RoleMap) (models.Transaction, bool) {
	date, ok := ParseDate(table.At(row, roles.Index(normalize.Date)))
	if !ok {
		return models.Transaction{}, false
	}

	amount, source := ResolveAmount(table, row, roles)
	if amount.IsZero() {
		return models.Transaction{}, false
	}

	description := cellText(table, row, roles, normalize.Description)

	var typ models.TransactionType
	if source == SourceDebitCredit {
		typ, amount = p.classifier.ClassifySigned(amount)
	} else {
		typ, amount = p.classifier.Classify(amount, description)
	}

	var category string
	if roles.Has(normalize.Category) {
		category = p.classifier.Category(cellText(table, row, roles, normalize.Category), description)
	} else {
		category = p.classifier.Categorize(description)
	}

	return models.Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        typ,
		Category:    category,
		ThirdParty:  cellText(table, row, roles, normalize.ThirdParty),
	}, true
}

func cellText(table *decoder.Table, row []decoder.Cell, roles normalize.RoleMap, role normalize.Role) string {
	if !roles.Has(role) {
		return ""
	}
	return strings.TrimSpace(table.At(row, roles.Index(role)).String())
}

// Pipeline ingests one file per upload. An upload is ingested at most once:
// concurrent attempts in this process are rejected, and the store refuses
// to complete an upload that already left processing.
type Pipeline struct {
	*Parser
	store Store

	mu     sync.Mutex
	active map[int64]struct{}
}

// NewPipeline creates an ingestion pipeline persisting to store
func NewPipeline(store Store, c *classifier.Classifier) *Pipeline {
	return &Pipeline{
		Parser: NewParser(c),
		store:  store,
		active: make(map[int64]struct{}),
	}
}

// Ingest parses r and persists its transactions for uploadID in one batch.
// On any failure nothing is persisted and the upload moves to error.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, format decoder.Format, uploadID int64) (int, error) {
	if !p.claim(uploadID) {
		return 0, ErrIngestionInProgress
	}
	defer p.release(uploadID)

	log := logger.FromContext(ctx).With("upload_id", uploadID, "format", string(format))
	log.Info("ingest_started")

	res, err := p.Parse(r, format)
	if err == nil && len(res.Transactions) == 0 {
		err = ErrNoValidTransactions
	}
	if err == nil {
		for i := range res.Transactions {
			res.Transactions[i].SourceFileID = uploadID
		}
		err = p.store.CompleteUpload(ctx, uploadID, res.Transactions)
	}

	if err != nil {
		if errors.Is(err, database.ErrUploadNotProcessing) {
			log.Warn("ingest_rejected", "error", err)
			return 0, err
		}
		if ferr := p.store.FailUpload(uploadID, err.Error()); ferr != nil && !errors.Is(ferr, database.ErrUploadNotProcessing) {
			log.Error("ingest_mark_failed_error", "error", ferr)
		}
		log.Error("ingest_failed", "error", err)
		return 0, fmt.Errorf("ingest upload %d: %w", uploadID, err)
	}

	log.Info("ingest_completed", "rows", res.Rows, "skipped", res.Skipped, "inserted", len(res.Transactions))
	return len(res.Transactions), nil
}

func (p *Pipeline) claim(uploadID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.active[uploadID]; busy {
		return false
	}
	p.active[uploadID] = struct{}{}
	return true
}

func (p *Pipeline) release(uploadID int64) {
	p.mu.Lock()
	delete(p.active, uploadID)
	p.mu.Unlock()
}
