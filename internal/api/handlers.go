package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fredhutch/phiscan/internal/extract"
	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/patterns"
	"github.com/fredhutch/phiscan/internal/queue"
	"github.com/fredhutch/phiscan/internal/reports"
	"github.com/fredhutch/phiscan/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"patterns": len(s.eng.Snapshot().All()),
	})
}

type classifyRequest struct {
	Filename           string `json:"filename"`
	Text               string `json:"text"`
	IncludeOccurrences bool   `json:"include_occurrences"`
}

// handleClassify accepts either a JSON body with pre-extracted text or a
// multipart upload whose file is extracted server-side.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	doc, includeOccurrences, ok := s.readClassifyInput(w, r)
	if !ok {
		return
	}

	result := s.eng.Classify(r.Context(), doc, includeOccurrences)

	if s.db != nil {
		if err := s.db.SaveResult(r.Context(), uuid.Nil, &result); err != nil {
			s.logger.Error("saving result", "error", err)
		}
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) readClassifyInput(w http.ResponseWriter, r *http.Request) (models.Document, bool, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return s.readUpload(w, r)
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return models.Document{}, false, false
	}

	return models.Document{
		ID:       uuid.New(),
		Filename: req.Filename,
		Text:     req.Text,
	}, req.IncludeOccurrences, true
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (models.Document, bool, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return models.Document{}, false, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return models.Document{}, false, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading upload")
		return models.Document{}, false, false
	}

	extracted, err := extract.FromBytes(header.Filename, data)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return models.Document{}, false, false
	}

	includeOccurrences := r.FormValue("include_occurrences") == "true"
	return models.Document{
		ID:         uuid.New(),
		Filename:   header.Filename,
		Text:       extracted.Text,
		Extraction: extracted.Metadata,
	}, includeOccurrences, true
}

type createBatchRequest struct {
	Bucket             string `json:"bucket"`
	Prefix             string `json:"prefix"`
	Region             string `json:"region"`
	Priority           int    `json:"priority"`
	IncludeOccurrences bool   `json:"include_occurrences"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Bucket == "" {
		respondError(w, http.StatusBadRequest, "bucket is required")
		return
	}

	batchID := uuid.New()
	if err := s.db.CreateBatch(r.Context(), batchID, 0); err != nil {
		s.logger.Error("creating batch", "error", err)
		respondError(w, http.StatusInternalServerError, "creating batch")
		return
	}

	job := &queue.Job{
		BatchID:            batchID,
		Bucket:             req.Bucket,
		Prefix:             req.Prefix,
		Region:             req.Region,
		Priority:           req.Priority,
		IncludeOccurrences: req.IncludeOccurrences,
	}
	if err := s.jobs.Enqueue(r.Context(), job); err != nil {
		s.logger.Error("enqueueing batch job", "error", err)
		respondError(w, http.StatusInternalServerError, "enqueueing job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID,
		"job_id":   job.ID,
		"status":   models.BatchStatusPending,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	batch, err := s.db.GetBatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			respondError(w, http.StatusNotFound, "batch not found")
			return
		}
		s.logger.Error("getting batch", "error", err)
		respondError(w, http.StatusInternalServerError, "getting batch")
		return
	}

	respondJSON(w, http.StatusOK, batch)
}

func (s *Server) handleBatchResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	results, err := s.db.ListBatchResults(r.Context(), id)
	if err != nil {
		s.logger.Error("listing batch results", "error", err)
		respondError(w, http.StatusInternalServerError, "listing results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleBatchReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	batch, err := s.db.GetBatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			respondError(w, http.StatusNotFound, "batch not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "getting batch")
		return
	}

	results, err := s.db.ListBatchResults(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "listing results")
		return
	}

	pdf, err := reports.NewPDFReport().Generate(batch.Summary, results)
	if err != nil {
		s.logger.Error("generating report", "error", err)
		respondError(w, http.StatusInternalServerError, "generating report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="phi-report-`+id.String()+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "getting queue stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	stored, err := s.db.ListPatterns(r.Context(), false)
	if err != nil {
		s.logger.Error("listing patterns", "error", err)
		respondError(w, http.StatusInternalServerError, "listing patterns")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"patterns": stored})
}

func (s *Server) handleCreatePattern(w http.ResponseWriter, r *http.Request) {
	var p store.CustomPattern
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Category == "" || p.Pattern == "" {
		respondError(w, http.StatusBadRequest, "category and pattern are required")
		return
	}

	// Compile up front so a bad pattern is rejected at the API boundary
	// instead of breaking the next reload.
	if err := patterns.Empty().Register(p.Def()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p.Enabled = true
	if err := s.db.CreatePattern(r.Context(), &p); err != nil {
		s.logger.Error("creating pattern", "error", err)
		respondError(w, http.StatusInternalServerError, "creating pattern")
		return
	}

	if err := s.reloadPatterns(r.Context()); err != nil {
		s.logger.Error("reload after pattern create failed", "error", err)
	}

	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	if err := s.db.DeletePattern(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrPatternNotFound) {
			respondError(w, http.StatusNotFound, "pattern not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "deleting pattern")
		return
	}

	if err := s.reloadPatterns(r.Context()); err != nil {
		s.logger.Error("reload after pattern delete failed", "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReloadPatterns(w http.ResponseWriter, r *http.Request) {
	if err := s.reloadPatterns(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "reloaded",
		"patterns": len(s.eng.Snapshot().All()),
	})
}
