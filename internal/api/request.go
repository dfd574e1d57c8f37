package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"gemini-chat-relay/internal/models"
)

// requestError is a client-caused failure whose message is safe to
// return verbatim.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

// uploadedFile is an upload buffered fully in memory. Buffering avoids
// the shared upload-directory races a disk-staging design has under
// concurrent requests; the transport-level body cap bounds the size.
type uploadedFile struct {
	Name string
	Data []byte
}

// chatInput is the normalized form of a /chat or /stream request.
type chatInput struct {
	Chat    string
	History []models.Turn
	// DocText carries pre-extracted text supplied via the JSON
	// file_content field; File carries a raw multipart upload.
	DocText string
	HasDoc  bool
	File    *uploadedFile
}

// parseChatRequest branches on the declared content type and produces
// the normalized input. The body is capped at the configured upload
// ceiling before any reading happens.
func (s *Server) parseChatRequest(w http.ResponseWriter, r *http.Request) (*chatInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return s.parseJSONRequest(r)
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return s.parseMultipartRequest(r)
	default:
		return nil, &requestError{"Content type not supported"}
	}
}

func (s *Server) parseJSONRequest(r *http.Request) (*chatInput, error) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &requestError{"Invalid request body"}
	}

	in := &chatInput{
		Chat:    req.Chat,
		History: models.SanitizeHistory(req.History),
	}
	if req.FileContent != "" {
		in.DocText = req.FileContent
		in.HasDoc = true
	}
	return in, nil
}

func (s *Server) parseMultipartRequest(r *http.Request) (*chatInput, error) {
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxBytes); err != nil {
		return nil, &requestError{"Invalid multipart form"}
	}

	in := &chatInput{
		Chat: strings.TrimSpace(r.FormValue("chat")),
	}

	// A malformed history field degrades to an empty history; it never
	// fails the whole request.
	if raw := r.FormValue("history"); raw != "" {
		var turns []models.Turn
		if err := json.Unmarshal([]byte(raw), &turns); err == nil {
			in.History = models.SanitizeHistory(turns)
		}
	}

	file, err := s.readUploadedFile(r)
	if err != nil {
		return nil, err
	}
	in.File = file
	return in, nil
}

// readUploadedFile buffers the optional "file" field and validates its
// extension against the configured allow-list.
func (s *Server) readUploadedFile(r *http.Request) (*uploadedFile, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &requestError{"Invalid file upload"}
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, &requestError{"No file selected"}
	}
	name := filepath.Base(header.Filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" || !s.cfg.AllowsExtension(ext) {
		return nil, &requestError{"Invalid file format. Supported formats: " + s.cfg.AllowedFormatsMessage()}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &requestError{"Failed to read uploaded file"}
	}

	return &uploadedFile{Name: name, Data: data}, nil
}
