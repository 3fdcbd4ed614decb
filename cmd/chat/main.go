package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"document-chat/internal/client"
	"document-chat/internal/commands"
	"document-chat/internal/config"
	"document-chat/internal/helper"
	"document-chat/internal/models"
	"document-chat/internal/rag"
	"document-chat/internal/viewer"
)

const (
	configFilePath = "./configs/config.yaml"
)

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	serverURL := flag.String("server", "", "Chat server base URL, defaults to server.base_url")
	documentID := flag.String("document", "", "Document id to chat about")
	conversationID := flag.String("conversation", "", "Conversation id to continue, generated when empty")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.InitLogger(cfg.Log.Level, cfg.Log.Pretty)

	if *documentID == "" {
		log.Fatal().Msg("Please provide a document using the -document flag")
	}
	if *serverURL == "" {
		*serverURL = cfg.Server.BaseURL
	}
	if *conversationID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			log.Fatal().Err(err).Msg("Error generating conversation id")
		}
		*conversationID = id
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*serverURL, nil)
	term := viewer.NewTerminal(os.Stdout)

	history, err := c.Messages(ctx, *conversationID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load conversation history")
	}
	for _, msg := range history {
		fmt.Printf("%s: %s\n", msg.Role, commands.Strip(msg.Content))
	}
	// replaying the last answer puts the viewer back where the conversation left it
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant {
			commands.NewDispatcher(term).Dispatch(commands.Parse(history[i].Content))
			break
		}
	}

	log.Info().Str("conversation_id", *conversationID).Str("document_id", *documentID).Msg("Chat started, Ctrl-D to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		stream := commands.NewStreamState(commands.NewDispatcher(term), *conversationID)
		err := c.Chat(ctx, *conversationID, *documentID, query, rag.Tee(viewer.NewEcho(os.Stdout), stream))
		switch {
		case errors.Is(err, models.ErrUpstream):
			log.Warn().Err(err).Msg("Answer failed")
		case err != nil:
			log.Error().Err(err).Msg("Chat request failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}
