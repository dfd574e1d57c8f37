package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ory/herodot"
	"github.com/rs/cors"

	"gemini-chat-relay/internal/config"
	apperrors "gemini-chat-relay/internal/errors"
	"gemini-chat-relay/internal/extract"
	"gemini-chat-relay/internal/llm"
	"gemini-chat-relay/internal/models"
	"gemini-chat-relay/internal/prompt"
)

type Server struct {
	mux       *http.ServeMux
	cfg       *config.Config
	extractor extract.Extractor
	llmClient llm.Client
	composer  *prompt.Composer
	writer    *herodot.JSONWriter
	errors    *apperrors.Handler
}

func NewServer(cfg *config.Config, extractor extract.Extractor, llmClient llm.Client, composer *prompt.Composer) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		cfg:       cfg,
		extractor: extractor,
		llmClient: llmClient,
		composer:  composer,
		writer:    herodot.NewJSONWriter(nil),
		errors:    apperrors.NewHandler(cfg),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/stream", s.handleStream)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/health", s.healthCheck)
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(loggingMiddleware(requestIDMiddleware(s.mux)))
}

func (s *Server) Run(addr string) error {
	log.Printf("Server starting on %s", addr)

	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		// No WriteTimeout: /stream responses are open-ended.
	}
	return srv.ListenAndServe()
}

// composeMessage runs extraction and prompt composition for a parsed
// request. Failures come back as *requestError when caused by the
// client.
func (s *Server) composeMessage(in *chatInput) (string, error) {
	docText, hasDoc := in.DocText, in.HasDoc

	if in.File != nil {
		hasDoc = true
		result := s.extractor.Extract(in.File.Name, in.File.Data)
		switch {
		case result.Err == nil:
			docText = result.Text
		case s.cfg.Extract.FailureMode == config.FailureReject:
			return "", &requestError{"Could not read document: " + result.Err.Error()}
		default:
			// Legacy behavior: the failure text becomes the document
			// content and travels to the model.
			docText = extract.LegacyErrorText(in.File.Name, result.Err)
		}
	}

	message, err := s.composer.Compose(in.Chat, docText, hasDoc)
	if err != nil {
		if errors.Is(err, prompt.ErrEmptyRequest) {
			return "", &requestError{"Message or document content required"}
		}
		return "", err
	}
	return message, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromContext(r.Context())

	in, err := s.parseChatRequest(w, r)
	if err != nil {
		s.errors.HandleValidationError(w, r, err.Error(), requestID)
		return
	}

	message, err := s.composeMessage(in)
	if err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			s.errors.HandleValidationError(w, r, reqErr.Error(), requestID)
		} else {
			s.errors.HandleInternalError(w, r, err, requestID)
		}
		return
	}

	reply, err := s.llmClient.Send(r.Context(), in.History, message)
	if err != nil {
		s.errors.HandleUpstreamError(w, r, err, requestID)
		return
	}

	s.writer.Write(w, r, &models.ChatResponse{Text: reply})
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Keeps reverse proxies from batching fragments.
	w.Header().Set("X-Accel-Buffering", "no")
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errors.HandleInternalError(w, r, errors.New("response writer does not support flushing"),
			requestIDFromContext(r.Context()))
		return
	}

	// Once streaming starts there is no status-code channel left;
	// every failure, including pre-flight validation, is delivered as
	// a terminal "Error: ..." fragment.
	in, err := s.parseChatRequest(w, r)
	if err != nil {
		streamError(w, flusher, err)
		return
	}

	message, err := s.composeMessage(in)
	if err != nil {
		streamError(w, flusher, err)
		return
	}

	setStreamHeaders(w)

	chunks, errs := s.llmClient.Stream(r.Context(), in.History, message)
	for chunk := range chunks {
		if _, err := io.WriteString(w, chunk); err != nil {
			// Client is gone; the producer shuts down via context.
			return
		}
		flusher.Flush()
	}

	if err := <-errs; err != nil && r.Context().Err() == nil {
		streamError(w, flusher, err)
	}
}

func streamError(w http.ResponseWriter, flusher http.Flusher, err error) {
	setStreamHeaders(w)
	_, _ = io.WriteString(w, "Error: "+err.Error())
	flusher.Flush()
}

// handleUpload extracts text from a standalone document upload and
// returns it, so clients can round-trip the content through the JSON
// file_content field later.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromContext(r.Context())

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.errors.HandleValidationError(w, r, "Content type not supported", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxBytes); err != nil {
		s.errors.HandleValidationError(w, r, "Invalid multipart form", requestID)
		return
	}

	file, err := s.readUploadedFile(r)
	if err != nil {
		s.errors.HandleValidationError(w, r, err.Error(), requestID)
		return
	}
	if file == nil {
		s.errors.HandleValidationError(w, r, "No file provided", requestID)
		return
	}

	content := ""
	result := s.extractor.Extract(file.Name, file.Data)
	switch {
	case result.Err == nil:
		content = result.Text
	case s.cfg.Extract.FailureMode == config.FailureReject:
		s.errors.HandleValidationError(w, r, "Could not read document: "+result.Err.Error(), requestID)
		return
	default:
		content = extract.LegacyErrorText(file.Name, result.Err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), ".")
	s.writer.Write(w, r, &models.UploadResponse{
		Success: true,
		FileInfo: models.FileInfo{
			Filename: file.Name,
			Type:     ext,
			Size:     len(file.Data),
			Content:  content,
		},
		Message: fmt.Sprintf("File %s uploaded and processed successfully", file.Name),
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.writer.Write(w, r, &models.HealthResponse{Status: "healthy"})
}
