package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
	runnerx "github.com/plancanvas/plancanvas/agent/runner"
	statex "github.com/plancanvas/plancanvas/agent/state"
	"github.com/plancanvas/plancanvas/pkg/auth"
	"github.com/plancanvas/plancanvas/pkg/clickup"
	configx "github.com/plancanvas/plancanvas/pkg/config"
	"github.com/plancanvas/plancanvas/pkg/geocode"
	llmx "github.com/plancanvas/plancanvas/pkg/llm"
	_ "github.com/plancanvas/plancanvas/pkg/logger/autoload"
	"github.com/plancanvas/plancanvas/pkg/workspace"
	serverx "github.com/plancanvas/plancanvas/server"
)

type AppConfig struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	llmCfg := configx.MustNew[llmx.Config]("OPENAI")
	llmClient := llmx.NewClient(*llmCfg)
	if llmClient == nil {
		log.Fatal().Msg("failed to initialize model client")
	}

	workspaceCfg := configx.MustNew[workspace.Config]("MCP")
	workspaces := workspace.NewClientCache(*workspaceCfg)

	geocodeCfg := configx.MustNew[geocode.Config]("GOOGLE_MAPS")
	geocoder, err := geocode.NewClient(*geocodeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize geocoding client")
	}

	authCfg := configx.MustNew[auth.Config]("AUTH")
	tokens := auth.NewStaticSource(*authCfg)

	var store statex.Store
	pgCfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
	if strings.TrimSpace(pgCfg.DSN) != "" {
		bunStore, err := statex.NewBunStore(*pgCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize postgres snapshot store")
		}
		if err := bunStore.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure snapshot schema")
		}
		store = bunStore
	} else {
		store = statex.NewMemoryStore()
	}
	sessions := statex.NewManager(store)

	turnRunner := runnerx.New(llmClient, runnerx.Config{
		Model:       llmCfg.Model,
		Temperature: llmCfg.Temperature,
		MaxTokens:   llmCfg.MaxCompletionToken,
	})

	handler := serverx.New(
		turnRunner,
		sessions,
		func(token string) contractx.WorkspaceAPI { return workspaces.Client(token) },
		clickup.NewInMemory(),
		geocoder,
		tokens,
	)

	log.Info().Str("addr", appCfg.Addr).Msg("plancanvas api listening")
	if err := http.ListenAndServe(appCfg.Addr, handler); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
