// Package prompt merges document text and user text into the message
// sent to the model.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Empty-chat template variants. "analyze" appends an explicit analysis
// request when a document is uploaded without a question; "bare" sends
// the prefixed content alone.
const (
	EmptyChatAnalyze = "analyze"
	EmptyChatBare    = "bare"
)

// ErrEmptyRequest is returned when there is no usable text and no
// document to compose a message from.
var ErrEmptyRequest = errors.New("no message or document content provided")

type Composer struct {
	emptyChatMode string
}

func NewComposer(emptyChatMode string) *Composer {
	return &Composer{emptyChatMode: emptyChatMode}
}

// Compose builds the outbound message. With no document the chat text
// passes through verbatim.
func (c *Composer) Compose(chat, docText string, hasDoc bool) (string, error) {
	if !hasDoc {
		if strings.TrimSpace(chat) == "" {
			return "", ErrEmptyRequest
		}
		return chat, nil
	}

	if strings.TrimSpace(chat) == "" {
		if c.emptyChatMode == EmptyChatBare {
			return fmt.Sprintf("Document content:\n%s", docText), nil
		}
		return fmt.Sprintf("Document content:\n%s\n\nPlease analyze this document.", docText), nil
	}

	return fmt.Sprintf("Document content:\n%s\n\nUser question: %s", docText, chat), nil
}
