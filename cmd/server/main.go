package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/backendauth/identity-service/internal/api"
	"github.com/backendauth/identity-service/internal/api/handler"
	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/core/ports"
	"github.com/backendauth/identity-service/internal/core/service"
	mongostore "github.com/backendauth/identity-service/internal/infrastructure/db/mongo"
	"github.com/backendauth/identity-service/internal/infrastructure/db/postgres"
	redisstore "github.com/backendauth/identity-service/internal/infrastructure/db/redis"
	"github.com/backendauth/identity-service/internal/infrastructure/queue"
	"github.com/backendauth/identity-service/internal/pkg/config"
	"github.com/backendauth/identity-service/internal/pkg/password"
	"github.com/backendauth/identity-service/internal/pkg/token"
	"github.com/backendauth/identity-service/pkg/logger"
)

// store bundles the repositories of the selected backend.
type store struct {
	users ports.UserRepository
	audit ports.AuditRepository
	ping  handler.Pinger
	close func()
}

// @title                      Identity Service API
// @version                    1.0
// @description                JWT login, token validation and admin user/role management.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "identity-service",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	codec := token.NewCodec(token.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	hasher := password.NewHasher(cfg.BcryptCost)
	limiter := redisstore.NewLoginLimiter(rdb, cfg.Login.MaxAttempts, cfg.Login.Window)
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, st.audit, logger.With("audit"))

	users := service.NewUserService(st.users, hasher, dispatcher, logger.With("users"))
	auth := service.NewAuthService(st.users, hasher, codec, limiter, dispatcher, cfg.JWT.TTL(), logger.With("auth"))

	if err := seedAdmin(ctx, users, cfg.Admin, log); err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		AuthService: auth,
		UserService: users,
		Tokens:      codec,
		Health: map[string]handler.Pinger{
			cfg.StoreDriver: st.ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
		Production:  cfg.IsProduction(),
	})

	log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server starting")
	return serve(ctx, ":"+cfg.Port, e, dispatcher)
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		users := mongostore.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		if err := users.SeedRoles(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return &store{
			users: users,
			audit: mongostore.NewAuditRepository(db),
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			},
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil
	default:
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &store{
			users: postgres.NewUserRepository(pool),
			audit: postgres.NewAuditRepository(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil
	}
}

// seedAdmin creates the bootstrap administrator unless the account exists.
func seedAdmin(ctx context.Context, users ports.UserService, admin config.AdminConfig, log zerolog.Logger) error {
	if admin.Password == "" {
		log.Info().Msg("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	_, err := users.Create(ctx, ports.CreateUserInput{
		Username:  admin.Username,
		Email:     admin.Email,
		Password:  admin.Password,
		FirstName: "Admin",
		LastName:  "User",
		IsActive:  true,
		Roles:     domain.NewRoleInput([]domain.RoleID{domain.RoleAdmin}, nil),
	})
	switch {
	case errors.Is(err, domain.ErrConflict):
		log.Debug().Str("email", admin.Email).Msg("admin already present")
		return nil
	case err != nil:
		return err
	}
	log.Info().Str("email", admin.Email).Msg("admin user seeded")
	return nil
}
