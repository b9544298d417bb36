package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/AskStan/internal/adapter"
	"github.com/akolanti/AskStan/internal/adapter/utils"
	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/job"
	"github.com/akolanti/AskStan/internal/rag/ingest"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

type JobHandler struct {
	service   *job.Service
	uploadDir string
	logger    *logger_i.Logger
}

func NewJobHandler(jobService *job.Service, uploadDir string) *JobHandler {
	logJH := logger_i.NewLogger("JobHandler")
	logJH.Info("Starting job handler", "uploadDir", uploadDir)
	return &JobHandler{
		service:   jobService,
		uploadDir: uploadDir,
		logger:    logJH,
	}
}

// PostIngestHandler handles the uploading of documents for RAG ingestion.
// @Summary      Upload a document for ingestion
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        document_name  formData  string  false  "The display name of the document, defaults to the file name"
// @Param        document       formData  file    true   "The PDF, DOCX, ODT, RTF or TXT file to upload"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.ErrorResponse "Bad Request - Missing fields, unsupported type or file too large"
// @Failure      401  {object}  api.ErrorResponse "Missing or invalid admin token"
// @Failure      500  {object}  api.ErrorResponse "Internal Server Error - Storage or Write Error"
// @Router       /ingest [post]
func (h *JobHandler) PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	log := h.logger.WithTrace(r.Context(), config.TRACE_ID_KEY)

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	baseName := filepath.Base(fileMetadata.Filename)
	docName := r.FormValue("document_name")
	if docName == "" {
		docName = baseName
	}
	if !ingest.IsSupported(baseName) {
		WriteErrorResponse(w, http.StatusBadRequest, docName, fmt.Sprintf("unsupported file type %q", filepath.Ext(baseName)))
		return
	}

	tempFilePath := filepath.Join(h.uploadDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), baseName))
	if err = saveUpload(tempFilePath, fileReader); err != nil {
		log.Error("Could not store upload", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}

	newJob := adapter.ToNewJob(utils.GetNewUUID(), traceId(r.Context()), docName, tempFilePath)
	if err = h.service.Enqueue(r.Context(), newJob); err != nil {
		_ = os.Remove(tempFilePath)
		log.Error("Could not queue ingest job", "error", err)
		WriteErrorResponse(w, http.StatusServiceUnavailable, newJob.Id, "Could not queue the document")
		return
	}

	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.Id))
}

// GetStatusHandler godoc
// @Summary      Get ingestion job status
// @Description  Retrieves the current status of an ingestion job using its ID.
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.ErrorResponse "Job not found"
// @Router       /status/{id} [get]
func (h *JobHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")

	result, isFound := h.service.GetJob(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return err
	}
	if err = dst.Close(); err != nil {
		return errors.Join(err, os.Remove(path))
	}
	return nil
}
