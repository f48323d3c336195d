package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"seju-chat/internal/agent"
	"seju-chat/internal/config"
	"seju-chat/internal/db"
	"seju-chat/internal/embedding"
	"seju-chat/internal/ingest"
	"seju-chat/internal/ragtool"
	"seju-chat/internal/retrieve"
	"seju-chat/internal/server"
	"seju-chat/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	ingestPath := flag.String("ingest", "", "Rebuild the index from a file or folder, then exit")
	query := flag.String("query", "", "Run one similarity search, then exit")
	flag.Parse()

	if *ingestPath != "" && *query != "" {
		log.Fatal().Msg("Please provide either -ingest or -query, but not both")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	app, err := buildApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring application")
	}

	ctx := context.Background()
	switch {
	case *ingestPath != "":
		runIngest(ctx, app, *ingestPath)
	case *query != "":
		runQuery(ctx, app, *query)
	default:
		serve(cfg, app)
	}
}

type app struct {
	engine   *retrieve.Engine
	pipeline *ingest.Pipeline
	runner   *agent.Agent
}

func buildApp(cfg *config.Config) (*app, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	store, err := vectorstore.New(cfg.Vector.Path, cfg.Vector.Collection, cfg.Vector.InMemory, embedding.ChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	var uploads ingest.UploadRecorder
	if cfg.Database.Enabled {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		bundb := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(context.Background(), bundb); err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		uploads = db.NewUploadStore(bundb)
	}

	pipeline, err := ingest.New(&cfg.RAG, embedder, store, uploads)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	engine := retrieve.NewEngine(embedder, store, cfg.RAG.DefaultK)
	runner, err := agent.New(&cfg.ChatLLM, ragtool.New(engine))
	if err != nil {
		return nil, fmt.Errorf("init agent: %w", err)
	}

	return &app{engine: engine, pipeline: pipeline, runner: runner}, nil
}

func runIngest(ctx context.Context, app *app, path string) {
	count, err := app.pipeline.Ingest(ctx, path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error rebuilding index")
	}
	log.Info().Int("chunks", count).Msg("Index rebuilt")
}

func runQuery(ctx context.Context, app *app, query string) {
	results, err := app.engine.Retrieve(ctx, query, app.engine.DefaultK())
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Error rendering results")
	}
	fmt.Printf("%s\n", out)
}

func serve(cfg *config.Config, app *app) {
	srv := server.New(app.runner, app.engine, app.pipeline, cfg.RAG.DocsDir)
	log.Info().Str("addr", cfg.Server.Addr).Msg("Listening")
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Handler()); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
