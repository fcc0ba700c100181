package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/answer"
	"github.com/hyperjump/docqa/internal/extract"
	"github.com/hyperjump/docqa/internal/lifecycle"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/storage"
	"github.com/hyperjump/docqa/pkg/utils"
)

// sourcePreviewChars bounds the content returned with each source.
const sourcePreviewChars = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": uuid.NewString()})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFrom(r.Context())
	docs, err := s.storage.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		if scope.Allows(d.Visibility()) {
			out = append(out, d.Summary())
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFrom(r.Context())
	doc, status, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	doc.SetVisibility(scope.UploadVisibility())

	if err := s.storage.CreateDocument(r.Context(), doc); err != nil {
		if errors.Is(err, storage.ErrEmptyContent) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("store document failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	indexed := true
	if err := s.engine.Insert(r.Context(), lifecycle.InsertRequest(doc)); err != nil {
		// The stored document is picked up again by the next rebuild.
		indexed = false
		s.logger.Error("index document failed", zap.Int64("doc_id", doc.ID), zap.Error(err))
	}
	s.logger.Debug("document uploaded",
		zap.Int64("doc_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Stringer("scope", scope))
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":       doc.ID,
		"filename": doc.Filename,
		"indexed":  indexed,
	})
}

// readUpload accepts a multipart "file" field or a JSON DocumentInput body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*models.Document, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid multipart body")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("missing file field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		ex, err := s.extractor.Extract(header.Filename, data)
		if err != nil {
			if errors.Is(err, extract.ErrUnsupported) {
				return nil, http.StatusUnsupportedMediaType, err
			}
			return nil, http.StatusBadRequest, err
		}
		doc := &models.Document{Title: ex.Title, Filename: ex.Filename, FileType: ex.FileType, Content: ex.Content}
		if title := strings.TrimSpace(r.FormValue("title")); title != "" {
			doc.Title = title
		}
		return doc, 0, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes+1<<20)
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		return nil, http.StatusBadRequest, errors.New("invalid request body")
	}
	text, err := s.extractor.ExtractBytes([]byte(input.Content), ".txt")
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	doc := &models.Document{
		Title:    input.Title,
		Filename: input.Filename,
		FileType: "txt",
		Content:  strings.TrimSpace(text),
	}
	if doc.Title == "" {
		doc.Title = doc.Filename
	}
	return doc, 0, nil
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFrom(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !scope.Allows(doc.Visibility())) {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("get document failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.storage.DeleteDocument(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("delete document failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.engine.Remove(id)
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scope := ScopeFrom(r.Context())
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.Retrieval.DefaultK, s.config.Retrieval.MaxK); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := models.QueryResponse{Query: req.Query, Sources: []models.Source{}}
	if !s.engine.HasDocuments(scope) {
		resp.Answer = answer.NoDocumentsAnswer
		resp.QueryTime = time.Since(start).Milliseconds()
		respondJSON(w, http.StatusOK, resp)
		return
	}

	results, err := s.engine.Search(r.Context(), req.Query, scope, req.K)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	passages := make([]answer.Passage, len(results))
	for i, res := range results {
		passages[i] = answer.Passage{Title: res.Title, Content: res.Content}
		resp.Sources = append(resp.Sources, models.Source{
			ID:         int(res.Slot),
			DocumentID: res.DocumentID,
			Title:      res.Title,
			Content:    utils.Truncate(res.Content, sourcePreviewChars),
			Score:      res.Score,
		})
	}
	resp.Answer = s.synthesizer.Synthesize(r.Context(), req.Query, passages)
	resp.QueryTime = time.Since(start).Milliseconds()
	s.logger.Debug("query answered",
		zap.String("query", req.Query),
		zap.Int("sources", len(resp.Sources)),
		zap.Int64("ms", resp.QueryTime))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docCount, err := s.storage.CountDocuments(r.Context())
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"documents": docCount,
		"index":     s.engine.Stats(),
		"config": map[string]any{
			"storage_driver":   s.config.Storage.Driver,
			"embedding_model":  s.config.Embedding.Model,
			"generation_model": s.config.Generation.Model,
			"candidate_limit":  s.config.Retrieval.CandidateLimit,
			"keyword_fallback": s.config.Retrieval.KeywordFallbackOrDefault(),
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(storage.StoreFiles(strings.ToLower(s.config.Storage.Driver), s.config.Storage.Path())...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.RebuildFromStore(r.Context()); err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "rebuilt", "index": s.engine.Stats()})
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	ids, err := s.lifecycle.Sweep(r.Context())
	if err != nil {
		s.logger.Error("expire failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"expired": ids})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
