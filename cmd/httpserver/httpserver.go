// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vkuzn/wallet-ledger/internal/accountrepo"
	"github.com/vkuzn/wallet-ledger/internal/accountservice"
	"github.com/vkuzn/wallet-ledger/internal/fraudcheck"
	"github.com/vkuzn/wallet-ledger/internal/ledgerdelivery"
	"github.com/vkuzn/wallet-ledger/internal/ledgerservice"
	"github.com/vkuzn/wallet-ledger/internal/memstore"
	"github.com/vkuzn/wallet-ledger/internal/middleware"
	"github.com/vkuzn/wallet-ledger/internal/reportdelivery"
	"github.com/vkuzn/wallet-ledger/internal/reportservice"
	"github.com/vkuzn/wallet-ledger/internal/sessiondelivery"
	"github.com/vkuzn/wallet-ledger/internal/sessionrepo"
	"github.com/vkuzn/wallet-ledger/internal/sessionservice"
	"github.com/vkuzn/wallet-ledger/internal/txnrepo"
	"github.com/vkuzn/wallet-ledger/internal/userdelivery"
	"github.com/vkuzn/wallet-ledger/internal/userrepo"
	"github.com/vkuzn/wallet-ledger/internal/userservice"
	"github.com/vkuzn/wallet-ledger/pkg/configpkg"
	"github.com/vkuzn/wallet-ledger/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

func newTokenMaker(config configpkg.Config) (tokenpkg.Maker, error) {
	if config.TokenMaker == "jwt" {
		return tokenpkg.NewJWTMaker(config.TokenSymmetricKey)
	}

	return tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
}

func fraudParams(config configpkg.Config) (fraudcheck.Params, error) {
	params := fraudcheck.DefaultParams()

	if config.FraudRateWindow > 0 {
		params.RateWindow = config.FraudRateWindow
	}

	if config.FraudRateThreshold > 0 {
		params.RateThreshold = int64(config.FraudRateThreshold)
	}

	if config.FraudAmountThreshold != "" {
		threshold, err := decimal.NewFromString(config.FraudAmountThreshold)
		if err != nil {
			return params, errors.New("invalid fraud amount threshold")
		}

		params.AmountThreshold = threshold
	}

	return params, nil
}

// New creates Server type with instantiated services and routes.
// For the postgres storage driver conn must be an open connection; the
// memory driver ignores it.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	var (
		accountRepo   accountservice.Repo
		ledgerRepo    ledgerservice.Repo
		logCounter    fraudcheck.Counter
		accountReader reportservice.AccountReader
		txnReader     reportservice.TxnReader
		userRepo      userservice.Repo
		sessionRepo   sessionservice.Repo
	)

	switch config.StorageDriver {
	case "postgres":
		if conn == nil {
			return nil, errors.New("postgres storage requires a database connection")
		}

		accounts := accountrepo.NewRepoPGS(conn)
		txns := txnrepo.NewRepoPGS(conn)

		accountRepo = accounts
		accountReader = accounts
		ledgerRepo = txns
		logCounter = txns
		txnReader = txns
		userRepo = userrepo.NewRepoPGS(conn)
		sessionRepo = sessionrepo.NewRepoPGS(conn)
	case "", "memory":
		store := memstore.New()

		accountRepo = store
		accountReader = store
		ledgerRepo = store
		logCounter = store
		txnReader = store
		userRepo = userrepo.NewRepoMem()
		sessionRepo = sessionrepo.NewRepoMem()
	default:
		return nil, errors.New("unknown storage driver " + config.StorageDriver)
	}

	tokenMaker, err := newTokenMaker(config)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	params, err := fraudParams(config)
	if err != nil {
		return nil, err
	}

	detector := fraudcheck.New(logCounter, params)

	accountService := accountservice.New(accountRepo)
	ledgerService := ledgerservice.New(ledgerRepo, accountService, detector)
	reportService := reportservice.New(accountReader, txnReader)
	userService := userservice.New(userRepo, accountService)

	sessionService, err := sessionservice.New(sessionRepo, config, tokenMaker)
	if err != nil {
		return nil, errors.New("cannot initialize session service")
	}

	userHandler := userdelivery.NewHandler(userService, sessionService)
	sessionHandler := sessiondelivery.NewHandler(sessionService)
	ledgerHandler := ledgerdelivery.NewHandler(ledgerService, accountService)
	reportHandler := reportdelivery.NewHandler(reportService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.POST("/register", userHandler.Create)
	engine.POST("/login", userHandler.Login)
	engine.POST("/sessions", sessionHandler.RenewAccessToken)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(sessionService.TokenMaker))

	authRoutes.POST("/deposit", ledgerHandler.Deposit)
	authRoutes.POST("/withdraw", ledgerHandler.Withdraw)
	authRoutes.POST("/transfer", ledgerHandler.Transfer)
	authRoutes.GET("/transactions", ledgerHandler.ListTransactions)

	authRoutes.GET("/admin/flags", reportHandler.Flagged)
	authRoutes.GET("/admin/stats", reportHandler.Stats)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("identifier", ledgerdelivery.ValidIdentifier)
		if err != nil {
			return nil, errors.New("cannot register identifier validator")
		}
	}

	server := &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
