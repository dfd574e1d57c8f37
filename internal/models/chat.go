package models

// Role tags one side of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether the role is one the model API accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Turn is one role-tagged message in a conversation history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SanitizeHistory drops turns with an empty text or an unknown role
// instead of forwarding them blindly to the model. The "assistant"
// role used by some clients is normalized to "model". Order is
// preserved.
func SanitizeHistory(turns []Turn) []Turn {
	result := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == "assistant" {
			t.Role = RoleModel
		}
		if !t.Role.Valid() || t.Text == "" {
			continue
		}
		result = append(result, t)
	}
	return result
}

// ChatRequest is the JSON body accepted by /chat and /stream.
// FileContent carries pre-extracted document text from a prior
// /upload call; it is merged into the prompt like an inline upload.
type ChatRequest struct {
	Chat        string `json:"chat"`
	History     []Turn `json:"history"`
	FileContent string `json:"file_content,omitempty"`
}

type ChatResponse struct {
	Text string `json:"text"`
}

// FileInfo describes a processed upload.
type FileInfo struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Size     int    `json:"size"`
	Content  string `json:"content"`
}

type UploadResponse struct {
	Success  bool     `json:"success"`
	FileInfo FileInfo `json:"file_info"`
	Message  string   `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
