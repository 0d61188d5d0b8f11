// Package bootstrap opens the persistence backend selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/migrations"
	"github.com/YashBawari18/Online-TicketConsession/pkg/config"
	"github.com/YashBawari18/Online-TicketConsession/pkg/database"
)

// Store is an opened gateway plus the handle needed to probe and close it.
type Store struct {
	Gateway gateway.Gateway
	Driver  string
	db      *sqlx.DB
}

// OpenStore connects the configured driver and wraps it with timeouts and query timings.
func OpenStore(ctx context.Context, cfg *config.Config, observer gateway.QueryObserver, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{Driver: cfg.Gateway.Driver}

	var backend gateway.Gateway
	switch cfg.Gateway.Driver {
	case config.GatewayPostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store.db = db
		store.Driver = config.GatewayPostgres
		backend = gateway.NewPostgres(db)
	case config.GatewaySupabase:
		gw, err := gateway.NewSupabase(gateway.SupabaseConfig{
			URL:        cfg.Supabase.URL,
			ServiceKey: cfg.Supabase.ServiceKey,
			Schema:     cfg.Supabase.Schema,
			Timeout:    cfg.Gateway.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend = gw
	case config.GatewayMemory:
		logger.Warn("using in-memory gateway; data is lost on restart")
		backend = NewMemoryGateway()
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", cfg.Gateway.Driver)
	}

	store.Gateway = gateway.NewInstrumented(backend, cfg.Gateway.Timeout, observer)
	return store, nil
}

// NewMemoryGateway returns an in-memory gateway enforcing the same unique keys as the schema.
func NewMemoryGateway() *gateway.Memory {
	return gateway.NewMemory(
		gateway.WithUniqueColumns("students", "email"),
		gateway.WithUniqueColumns("students", "roll_number"),
		gateway.WithUniqueColumns("admins", "username"),
	)
}

// Ping reports whether the backend answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.db != nil {
		return s.db.PingContext(ctx)
	}
	var rows []struct {
		ID string `db:"id"`
	}
	return s.Gateway.Query(ctx, "admins", gateway.Query{Columns: []string{"id"}, Limit: 1}, &rows)
}

// Migrate runs the embedded schema migrations. Only the postgres driver owns its schema.
func (s *Store) Migrate(direction database.Direction, steps int) (uint, error) {
	if s.db == nil {
		return 0, fmt.Errorf("migrations require the %s driver, not %s", config.GatewayPostgres, s.Driver)
	}
	return database.Migrate(s.db, migrations.FS, direction, steps)
}

// Close releases the database connection, if any.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
