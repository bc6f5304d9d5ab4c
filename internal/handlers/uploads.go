package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cashlens/internal/database"
	"cashlens/internal/decoder"
	"cashlens/internal/ingest"
	"cashlens/internal/jobs"
	"cashlens/internal/logger"
	"cashlens/internal/models"
)

type uploadView struct {
	ID               int64               `json:"id"`
	Filename         string              `json:"filename"`
	Format           string              `json:"format"`
	Status           models.UploadStatus `json:"status"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	JobID            *int64              `json:"job_id,omitempty"`
	TransactionCount int                 `json:"transaction_count"`
	UploadDate       string              `json:"upload_date"`
}

func viewUpload(u *models.Upload) uploadView {
	return uploadView{
		ID:               u.ID,
		Filename:         u.Filename,
		Format:           u.Format,
		Status:           u.Status,
		ErrorMessage:     u.ErrorMessage,
		JobID:            u.JobID,
		TransactionCount: u.TransactionCount,
		UploadDate:       u.CreatedAt.Format(time.RFC3339),
	}
}

// UploadCreate stores a statement file and queues its ingestion
func (h *Handler) UploadCreate(w http.ResponseWriter, r *http.Request) {
	l := logger.FromContext(r.Context())
	owner := ownerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		l.Warn("upload_parse_error", "error", err.Error())
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to parse form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file part"})
		return
	}
	defer file.Close()

	format, err := decoder.FormatFromFilename(header.Filename)
	if err != nil {
		h.fail(w, r, "upload_format_error", err)
		return
	}

	dup, err := h.db.HasCompletedUpload(owner, header.Filename)
	if err != nil {
		h.fail(w, r, "upload_duplicate_check_error", err)
		return
	}
	if dup {
		h.fail(w, r, "upload_duplicate", ingest.ErrDuplicateUpload)
		return
	}

	stored, err := h.files.Save(header.Filename, file)
	if err != nil {
		h.fail(w, r, "upload_file_save_error", err)
		return
	}

	upload := &models.Upload{OwnerID: owner, Filename: header.Filename, FilePath: stored, Format: string(format)}
	uploadID, err := h.db.CreateUpload(upload)
	if err != nil {
		h.files.Delete(stored)
		h.fail(w, r, "upload_create_error", err)
		return
	}

	jobID, err := h.db.EnqueueJob(jobs.IngestUploadJob, jobs.IngestUploadPayload{UploadID: uploadID}, 0)
	if err != nil {
		h.db.FailUpload(uploadID, "could not queue ingestion")
		h.fail(w, r, "upload_job_create_error", err)
		return
	}
	if err := h.db.SetUploadJob(uploadID, jobID); err != nil {
		l.Error("upload_set_job_error", "upload_id", uploadID, "error", err.Error())
	}

	l.Info("upload_job_queued", "upload_id", uploadID, "job_id", jobID, "filename", header.Filename, "size", header.Size)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"upload_id": uploadID,
		"job_id":    jobID,
		"status":    models.UploadProcessing,
	})
}

// UploadsList returns the owner's uploads, newest first
func (h *Handler) UploadsList(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.db.ListUploads(ownerFrom(r.Context()))
	if err != nil {
		h.fail(w, r, "uploads_list_error", err)
		return
	}
	out := make([]uploadView, 0, len(uploads))
	for i := range uploads {
		out = append(out, viewUpload(&uploads[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UploadShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "upload_show_error", err)
		return
	}
	u, err := h.db.GetUpload(ownerFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, "upload_show_error", err)
		return
	}
	writeJSON(w, http.StatusOK, viewUpload(u))
}

// UploadDelete removes an upload, its transactions and its stored file
func (h *Handler) UploadDelete(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "upload_delete_error", err)
		return
	}
	stored, err := h.db.DeleteUpload(owner, id)
	if err != nil {
		h.fail(w, r, "upload_delete_error", err)
		return
	}
	if err := h.files.Delete(stored); err != nil {
		logger.FromContext(r.Context()).Warn("upload_file_delete_error", "upload_id", id, "error", err.Error())
	}
	h.reports.Invalidate(owner)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("upload %d deleted", id)})
}

// JobStatus returns the status of a background job as JSON (for polling)
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "job_status_error", err)
		return
	}
	job, err := h.db.GetJob(id)
	if err != nil {
		h.fail(w, r, "job_status_error", err)
		return
	}
	if err := h.checkJobOwner(r, job); err != nil {
		h.fail(w, r, "job_status_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       job.ID,
		"status":   job.Status,
		"progress": job.Progress,
		"result":   job.Result,
	})
}

func (h *Handler) checkJobOwner(r *http.Request, job *models.Job) error {
	if job.JobType != jobs.IngestUploadJob {
		return database.ErrNotFound
	}
	var payload jobs.IngestUploadPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return errors.Join(database.ErrNotFound, err)
	}
	_, err := h.db.GetUpload(ownerFrom(r.Context()), payload.UploadID)
	return err
}
