// Gemini chat relay normalizes JSON and multipart chat requests,
// extracts text from uploaded documents, and forwards the composed
// prompt to the Google generative-language API, buffered or streamed.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"gemini-chat-relay/internal/api"
	"gemini-chat-relay/internal/config"
	"gemini-chat-relay/internal/extract"
	"gemini-chat-relay/internal/llm"
	"gemini-chat-relay/internal/prompt"
)

func main() {
	log.Println("Starting chat relay...")

	// Loads a .env file if one exists; real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if cfg.Gemini.APIKey == "" {
		log.Println("Warning: no API credential configured, model calls will fail")
	}

	extractor := extract.NewDocExtractor()
	gemini := llm.NewGeminiClient(
		cfg.Gemini.BaseURL,
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		cfg.Gemini.SystemInstruction,
		time.Duration(cfg.Gemini.Timeout)*time.Second,
	)
	composer := prompt.NewComposer(cfg.Prompt.EmptyChatMode)

	server := api.NewServer(cfg, extractor, gemini, composer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Run(addr); err != nil {
		log.Printf("Failed to start server: %v", err)
		return
	}
}
