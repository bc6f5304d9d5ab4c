package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cashlens/internal/database"
	"cashlens/internal/decoder"
	"cashlens/internal/filestore"
	"cashlens/internal/ingest"
	"cashlens/internal/logger"
	"cashlens/internal/models"
)

// IngestUploadJob is the job type that ingests a stored upload
const IngestUploadJob = "ingest_upload"

// IngestUploadPayload is the JSON payload for ingest_upload jobs
type IngestUploadPayload struct {
	UploadID int64 `json:"upload_id"`
}

// IngestUploadHandler reads the stored file of an upload and runs it through
// the pipeline. onIngested is called with the owner id after every attempt
// that reached the pipeline.
func IngestUploadHandler(files *filestore.Store, pipeline *ingest.Pipeline, onIngested func(ownerID int64)) JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		var payload IngestUploadPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return Permanent(fmt.Errorf("unmarshal payload: %w", err))
		}

		upload, err := db.GetUploadByID(payload.UploadID)
		if errors.Is(err, database.ErrNotFound) {
			return Permanent(err)
		}
		if err != nil {
			return fmt.Errorf("load upload: %w", err)
		}
		if upload.Status.Terminal() {
			db.CompleteJob(job.ID, resultJSON(upload.Status, upload.TransactionCount))
			return nil
		}
		db.UpdateJobProgress(job.ID, 10)

		ctx = logger.With(ctx, "job_id", job.ID, "owner_id", upload.OwnerID)

		data, err := files.Read(upload.FilePath)
		if err != nil {
			db.FailUpload(upload.ID, "stored file unreadable")
			return Permanent(fmt.Errorf("read upload file: %w", err))
		}
		db.UpdateJobProgress(job.ID, 30)

		n, err := pipeline.Ingest(ctx, bytes.NewReader(data), decoder.Format(upload.Format), upload.ID)
		if onIngested != nil {
			onIngested(upload.OwnerID)
		}
		if err != nil {
			return Permanent(err)
		}

		db.CompleteJob(job.ID, resultJSON(models.UploadCompleted, n))
		return nil
	}
}

func resultJSON(status models.UploadStatus, count int) string {
	out, _ := json.Marshal(map[string]any{
		"status":            status,
		"transaction_count": count,
	})
	return string(out)
}
