package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashlens/internal/models"
)

// ErrUploadNotProcessing is returned when an ingestion result is written for
// an upload that already left the processing state.
var ErrUploadNotProcessing = errors.New("upload is not processing")

const uploadColumns = `id, owner_id, filename, file_path, format, status, error_message, job_id, transaction_count, created_at, updated_at`

// CreateUpload inserts a new upload in the processing state
func (db *DB) CreateUpload(u *models.Upload) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO uploads (owner_id, filename, file_path, format, status)
		VALUES (?, ?, ?, ?, 'processing')
	`, u.OwnerID, u.Filename, u.FilePath, u.Format)
	if err != nil {
		return 0, fmt.Errorf("insert upload: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("upload id: %w", err)
	}
	u.ID = id
	u.Status = models.UploadProcessing
	return id, nil
}

// GetUpload returns an upload owned by ownerID
func (db *DB) GetUpload(ownerID, id int64) (*models.Upload, error) {
	u, err := scanUpload(db.QueryRow(`
		SELECT `+uploadColumns+` FROM uploads WHERE id = ? AND owner_id = ?
	`, id, ownerID))
	if err != nil {
		return nil, fmt.Errorf("get upload %d: %w", id, err)
	}
	return u, nil
}

// GetUploadByID returns an upload regardless of owner. Used by the ingest worker.
func (db *DB) GetUploadByID(id int64) (*models.Upload, error) {
	u, err := scanUpload(db.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get upload %d: %w", id, err)
	}
	return u, nil
}

// ListUploads returns the owner's uploads, newest first
func (db *DB) ListUploads(ownerID int64) ([]models.Upload, error) {
	rows, err := db.Query(`
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *u)
	}
	return uploads, rows.Err()
}

// HasCompletedUpload reports whether the owner already has a completed upload with this filename
func (db *DB) HasCompletedUpload(ownerID int64, filename string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM uploads
		WHERE owner_id = ? AND filename = ? AND status = 'completed'
	`, ownerID, filename).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check duplicate upload: %w", err)
	}
	return n > 0, nil
}

// SetUploadJob links an upload to the job that ingests it
func (db *DB) SetUploadJob(id, jobID int64) error {
	_, err := db.Exec(`
		UPDATE uploads SET job_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, jobID, id)
	if err != nil {
		return fmt.Errorf("set upload job: %w", err)
	}
	return nil
}

// CompleteUpload persists the whole batch and marks the upload completed in
// one transaction. The status check and the inserts commit or roll back together.
func (db *DB) CompleteUpload(ctx context.Context, uploadID int64, txns []models.Transaction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE uploads
		SET status = 'completed', transaction_count = ?, error_message = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'processing'
	`, len(txns), uploadID)
	if err != nil {
		return fmt.Errorf("mark upload completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUploadNotProcessing
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (source_file_id, date, description, amount, type, category, third_party)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range txns {
		_, err := stmt.ExecContext(ctx, uploadID, t.DateString(), t.Description,
			t.Amount.InexactFloat64(), string(t.Type), t.Category, t.ThirdParty)
		if err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FailUpload moves a processing upload to error. Terminal uploads are left untouched.
func (db *DB) FailUpload(id int64, errMsg string) error {
	res, err := db.Exec(`
		UPDATE uploads
		SET status = 'error', error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'processing'
	`, errMsg, id)
	if err != nil {
		return fmt.Errorf("fail upload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUploadNotProcessing
	}
	return nil
}

// DeleteUpload removes an upload and all of its transactions. Returns the
// stored file path so the caller can remove the file.
func (db *DB) DeleteUpload(ownerID, id int64) (string, error) {
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var filePath string
	err = tx.QueryRow(`SELECT file_path FROM uploads WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&filePath)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("delete upload %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query upload: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM transactions WHERE source_file_id = ?`, id); err != nil {
		return "", fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM uploads WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete upload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return filePath, nil
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var u models.Upload
	var status string
	var jobID sql.NullInt64
	err := row.Scan(&u.ID, &u.OwnerID, &u.Filename, &u.FilePath, &u.Format, &status,
		&u.ErrorMessage, &jobID, &u.TransactionCount, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	u.Status = models.UploadStatus(status)
	if jobID.Valid {
		u.JobID = &jobID.Int64
	}
	return &u, nil
}
