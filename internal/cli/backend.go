package cli

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"mountpass/internal/passes/media"
	"mountpass/internal/passes/service"
	outboxstore "mountpass/internal/passes/store/outbox"
	passstore "mountpass/internal/passes/store/pass"
	submitterstore "mountpass/internal/passes/store/submitter"
	"mountpass/internal/platform/config"
	"mountpass/internal/platform/logger"
	"mountpass/internal/platform/postgres"
)

// ServiceBackend runs passctl commands through the pass service so status
// changes are logged and emit outbox events exactly like the API does.
type ServiceBackend struct {
	*service.Service
	media *media.Store
	db    *sql.DB
}

func (b *ServiceBackend) URL(path string) string {
	return b.media.URL(path)
}

func (b *ServiceBackend) Migrate(ctx context.Context) ([]string, error) {
	if b.db == nil {
		return nil, errors.New("migrations need a Postgres database")
	}
	return postgres.Migrate(ctx, b.db)
}

func (b *ServiceBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// OpenPostgres builds a Backend from MOUNTPASS_* settings, with --database-url
// taking precedence.
func OpenPostgres(ctx context.Context, opts *RootOptions) (Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.DatabaseURL != "" {
		cfg.Database.URL = opts.DatabaseURL
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("no database configured: set --database-url or MOUNTPASS_DATABASE_URL")
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	svcOpts := []service.Option{
		service.WithLogger(logger.NewWithWriter(os.Stderr, cfg.Server.LogLevel)),
		service.WithTx(postgres.NewTx(db)),
	}
	if cfg.Events.Enabled {
		svcOpts = append(svcOpts, service.WithOutbox(outboxstore.NewPostgres(db)))
	}
	mediaStore := media.New(cfg.Media.Root, cfg.Media.URLPrefix, cfg.Media.MaxImageBytes)
	svc := service.New(submitterstore.NewPostgres(db), passstore.NewPostgres(db), mediaStore, svcOpts...)
	return &ServiceBackend{Service: svc, media: mediaStore, db: db}, nil
}
