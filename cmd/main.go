package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"document-chat/internal/chromemdb"
	"document-chat/internal/commands"
	"document-chat/internal/config"
	"document-chat/internal/db"
	"document-chat/internal/embedding"
	"document-chat/internal/helper"
	"document-chat/internal/ingest"
	"document-chat/internal/llmservice"
	"document-chat/internal/models"
	"document-chat/internal/rag"
	"document-chat/internal/server"
	"document-chat/internal/transcript"
	"document-chat/internal/viewer"
)

const (
	configFilePath = "./configs/config.yaml"
)

// chunkStore is what the pipeline reads from and the importer writes to.
type chunkStore interface {
	rag.ChunkStore
	ingest.ChunkWriter
}

type app struct {
	cfg        *config.Config
	chunks     chunkStore
	transcript transcript.Store
	embedder   *embedding.QueryEmbedder
	closers    []func() error
}

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	serve := flag.Bool("serve", false, "Serve the chat API")
	importFile := flag.String("import", "", "Path to an extraction JSON file to import")
	documentID := flag.String("document", "", "Document id to import into or chat about")
	query := flag.String("query", "", "Question to ask about the document")
	conversationID := flag.String("conversation", "", "Conversation id, generated when empty")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.InitLogger(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing stores")
	}
	defer a.close()

	switch {
	case *importFile != "" && *query != "":
		log.Fatal().Msg("Please provide either a file using the -import flag or a query using the -query flag, but not both")
	case *importFile != "":
		err = a.importChunks(ctx, *importFile, *documentID)
	case *query != "":
		err = a.ask(ctx, *documentID, *conversationID, *query)
	case *serve:
		err = a.serve(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		a.close()
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	a.embedder = embedding.NewQueryEmbedder(embedder, cfg.EmbedLLM.Dimension)

	switch cfg.VectorStore.Backend {
	case config.BackendPostgres:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		a.closers = append(a.closers, bunDB.Close)
		if err := db.InitDB(ctx, bunDB, cfg.EmbedLLM.Dimension); err != nil {
			a.close()
			return nil, err
		}
		a.chunks = db.NewChunkRepository(bunDB)
		a.transcript = db.NewMessageRepository(bunDB)

	case config.BackendChromem:
		vs := cfg.VectorStore
		if err := helper.CreateFolder(vs.Path); err != nil {
			return nil, err
		}
		vectorDB, err := chromemdb.NewVectorDBManager(vs.Path, vs.Collection, vs.InMemory, vs.EncryptionKey)
		if err != nil {
			return nil, err
		}
		if vs.InMemory && vs.EncryptionKey != "" {
			if err := vectorDB.Import(ctx); err != nil {
				return nil, err
			}
			a.closers = append(a.closers, func() error { return vectorDB.Export(context.Background()) })
		}
		a.chunks = vectorDB
		a.transcript = transcript.NewMemory()
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Error().Err(err).Msg("Error closing")
		}
	}
	a.closers = nil
}

func (a *app) pipeline() (*rag.RAG, error) {
	llm, err := llmservice.NewClient(&a.cfg.ChatLLM)
	if err != nil {
		return nil, err
	}
	return rag.NewRAG(rag.NewRetriever(a.chunks, a.embedder), llm, a.transcript, a.cfg.RAG.TopK), nil
}

func (a *app) importChunks(ctx context.Context, path, documentID string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := ingest.NewImporter(a.chunks, a.embedder, a.cfg.EmbedLLM.Dimension).Import(ctx, documentID, f)
	if err != nil {
		return err
	}
	helper.PrettyPrint(stats)
	return nil
}

// ask runs one turn in process, printing the answer and the viewer changes.
func (a *app) ask(ctx context.Context, documentID, conversationID, query string) error {
	if documentID == "" {
		return errors.New("-document is required with -query")
	}
	if conversationID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		conversationID = id
	}
	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	term := viewer.NewTerminal(os.Stdout)
	stream := commands.NewStreamState(commands.NewDispatcher(term), conversationID)
	sink := rag.Tee(viewer.NewEcho(os.Stdout), stream)

	result, err := pipeline.Chat(ctx, rag.TurnRequest{
		ConversationID: conversationID,
		DocumentID:     documentID,
		Query:          query,
	}, sink)
	if result == nil {
		return err
	}
	if err != nil && !errors.Is(err, models.ErrTranscript) {
		return err
	}

	log.Info().
		Str("conversation_id", conversationID).
		Stringer("state", result.Turn.State()).
		Bool("degraded", result.Turn.Degraded).
		Int("context", len(result.Context)).
		Int("commands", len(stream.Commands())).
		Msg("Answered")
	return nil
}

func (a *app) serve(ctx context.Context) error {
	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}
	srv := server.New(pipeline, a.transcript, a.cfg.Log.Level == "debug")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(a.cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
