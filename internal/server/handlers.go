package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20 // 64 MiB

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "kotaeru is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	provider := req.Provider
	if provider == "" {
		provider = s.config.RAG.DefaultProvider
	}
	s.logger.Debug("ask request", zap.String("provider", provider), zap.Int("top_k", req.TopK))

	gen, err := llm.New(provider, req.APIKey, req.Model)
	if err != nil {
		s.logger.Error("provider selection failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	answer, err := s.pipeline.Answer(r.Context(), req.Question, gen, req.TopK)
	if err != nil {
		s.logger.Error("answering failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.AskResponse{Answer: answer})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Reject unsupported types before reading or extracting anything.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" {
		s.respondError(w, http.StatusBadRequest, "only PDF files are supported, got "+header.Filename)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))

	chunksAdded, err := s.ingestor.IngestBytes(r.Context(), content, ext)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	message := "document ingested"
	if chunksAdded == 0 {
		message = "document already ingested"
	}
	s.respondJSON(w, http.StatusCreated, models.UploadResponse{
		Message:     message,
		DocumentID:  uuid.New().String(),
		ChunksAdded: chunksAdded,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := models.StatusResponse{
		Passages:        s.index.Size(),
		VectorIndexSize: s.index.Size(),
		Config: &models.StatusConfig{
			EmbeddingProvider:   s.config.Embedding.Provider,
			EmbeddingModel:      s.config.Embedding.Model,
			EmbeddingDimensions: s.config.Embedding.Dimensions,
			ChunkSize:           s.config.RAG.ChunkSize,
			OverlapParagraphs:   s.config.RAG.OverlapOrDefault(),
			TopK:                s.config.RAG.TopK,
			MinScore:            s.config.RAG.MinScore,
			DefaultProvider:     s.config.RAG.DefaultProvider,
			VectorIndexPath:     s.config.Storage.VectorIndexPath,
			PassageDBPath:       s.config.Storage.PassageDBPath,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusForError maps the error taxonomy to HTTP statuses: client errors to
// 400, dependency (backend) errors to 502, consistency errors and anything
// unrecognized to 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, llm.ErrUnsupportedProvider),
		errors.Is(err, ingest.ErrNoText),
		errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, vector.ErrInvalidTopK):
		return http.StatusBadRequest
	case errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, llm.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
