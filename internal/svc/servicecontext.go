package svc

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	"cgsync/internal/cache"
	"cgsync/internal/config"
	"cgsync/internal/store"
	"cgsync/pkg/coinglass"
)

// ServiceContext wires the shared dependencies of one ingestion run.
type ServiceContext struct {
	Config *config.Config

	DBConn sqlx.SqlConn
	Writer *store.Writer
	Client *coinglass.Client
	Cache  gocache.Cache
	TTL    cache.TTLSet
}

// NewServiceContext builds the context from validated configuration. The API
// key falls back to CG_API_KEY / COINGLASS_API_KEY from the environment so
// secrets stay out of config files.
func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	if c.Postgres.DSN == "" {
		return nil, fmt.Errorf("svc: postgres.dsn is required")
	}

	apiKey := c.Provider.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("CG_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("COINGLASS_API_KEY")
	}

	conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	if db, err := conn.RawDB(); err == nil {
		db.SetMaxOpenConns(c.Postgres.MaxOpen)
		db.SetMaxIdleConns(c.Postgres.MaxIdle)
	}

	timeout := time.Duration(c.Provider.TimeoutSeconds) * time.Second
	client := coinglass.NewClient(apiKey,
		coinglass.WithBaseURL(c.Provider.BaseURL),
		coinglass.WithCallsPerMinute(c.Provider.CallsPerMinute),
		coinglass.WithHTTPClient(&http.Client{Timeout: timeout}),
	)

	svc := &ServiceContext{
		Config: c,
		DBConn: conn,
		Writer: store.NewWriter(conn, c.Ingest.MaxInsert),
		Client: client,
		TTL:    cache.NewTTLSet(c.TTL),
	}

	if c.Redis.Host != "" {
		svc.Cache = gocache.New(
			gocache.CacheConf{{RedisConf: c.Redis, Weight: 100}},
			syncx.NewSingleFlight(),
			gocache.NewStat(cache.Namespace),
			sql.ErrNoRows,
		)
	}
	return svc, nil
}

// Ping verifies database connectivity before the run begins.
func (s *ServiceContext) Ping(ctx context.Context) error {
	var name string
	if err := s.DBConn.QueryRowCtx(ctx, &name, "SELECT current_database()"); err != nil {
		return fmt.Errorf("svc: database ping: %w", err)
	}
	return nil
}
