package prompt

import (
	"errors"
	"testing"
)

func TestComposeChatOnly(t *testing.T) {
	c := NewComposer(EmptyChatAnalyze)

	msg, err := c.Compose("hello", "", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msg != "hello" {
		t.Errorf("Expected chat text verbatim, got %q", msg)
	}
}

func TestComposeDocumentWithQuestion(t *testing.T) {
	c := NewComposer(EmptyChatAnalyze)

	msg, err := c.Compose("what is this?", "abc", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := "Document content:\nabc\n\nUser question: what is this?"
	if msg != expected {
		t.Errorf("Expected %q, got %q", expected, msg)
	}
}

func TestComposeDocumentEmptyChatAnalyze(t *testing.T) {
	c := NewComposer(EmptyChatAnalyze)

	msg, err := c.Compose("", "abc", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := "Document content:\nabc\n\nPlease analyze this document."
	if msg != expected {
		t.Errorf("Expected %q, got %q", expected, msg)
	}
}

func TestComposeDocumentEmptyChatBare(t *testing.T) {
	c := NewComposer(EmptyChatBare)

	msg, err := c.Compose("   ", "abc", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msg != "Document content:\nabc" {
		t.Errorf("Expected bare template, got %q", msg)
	}
}

func TestComposeWhitespaceChatWithDocumentUsesEmptyTemplate(t *testing.T) {
	c := NewComposer(EmptyChatAnalyze)

	msg, err := c.Compose(" \t\n", "abc", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := "Document content:\nabc\n\nPlease analyze this document."
	if msg != expected {
		t.Errorf("Expected empty-chat template, got %q", msg)
	}
}

func TestComposeEmptyRequest(t *testing.T) {
	c := NewComposer(EmptyChatAnalyze)

	_, err := c.Compose("   ", "", false)
	if !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("Expected ErrEmptyRequest, got %v", err)
	}
}
