// Package walletapi provides the API to manage wallet accounts,
// deposits, withdrawals and transfers.
package main

import (
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/vkuzn/wallet-ledger/cmd/httpserver"
	"github.com/vkuzn/wallet-ledger/internal/middleware"
	"github.com/vkuzn/wallet-ledger/pkg/configpkg"
	"github.com/vkuzn/wallet-ledger/pkg/dbpkg"

	_ "github.com/lib/pq"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	var db *sql.DB

	if config.StorageDriver == "postgres" {
		db, err = dbpkg.Setup("postgres", config.DBSource)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot connect to database")
		}
	}

	server, err := httpserver.New(db, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	logger.Info().Str("storage", config.StorageDriver).Msg("WALLET LEDGER SERVER HAS STARTED")

	err = server.Engine.Run(config.ServerAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}
