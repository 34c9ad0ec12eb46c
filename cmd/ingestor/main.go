package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"resident_directory/internal/adapters/observability"
	"resident_directory/internal/adapters/sheet"
	"resident_directory/internal/app"
	"resident_directory/internal/shared"
)

// ingestor runs one fetch -> parse -> map pass and logs what it found.
// Handy for checking a new sheet revision against the alias tables.
func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Strs("feeds", cfg.FeedURLs).
		Str("aliases", cfg.AliasesFile).
		Msg("ingestor starting")

	client, err := sheet.New(cfg.FeedURLs, cfg.FeedRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sheet client")
	}

	var extra app.AliasTable
	if cfg.AliasesFile != "" {
		if extra, err = app.LoadAliasFile(cfg.AliasesFile); err != nil {
			log.Fatal().Err(err).Msg("alias file")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	snap, err := app.NewIngestionService(client, app.NewMapper(extra)).Ingest(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("ingest failed")
	}

	sum := app.Summarize(snap.Records)
	log.Info().
		Str("version", snap.Version).
		Int("apartments", sum.Apartments).
		Int("owners", sum.Owners).
		Int("tenants", sum.Tenants).
		Int("members", sum.Members).
		Int("two_wheelers", sum.TwoWheelers).
		Int("four_wheelers", sum.FourWheelers).
		Msg("ingestion completed")

	ec := snap.Emergency
	if ec.President == "" && ec.Lift == "" && ec.Electrician == "" && ec.Plumber == "" && ec.Rickshaw == "" {
		log.Warn().Msg("no emergency contacts in feed")
	}
}
