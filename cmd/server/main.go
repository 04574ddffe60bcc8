package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgpulse/orgpulse/modules/survey"
	"github.com/orgpulse/orgpulse/pkg/application"
	"github.com/orgpulse/orgpulse/pkg/configuration"
	"github.com/orgpulse/orgpulse/pkg/eventbus"
	"github.com/orgpulse/orgpulse/pkg/middleware"
	"github.com/orgpulse/orgpulse/pkg/progress"
	"github.com/orgpulse/orgpulse/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		panic(err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Progress: progress.NewRegistry(conf.ProgressPing),
	})
	if err := application.Load(app, survey.NewModule()); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if err := applySchemas(ctx, app, pool); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	app.RegisterMiddleware(
		middleware.RequestLogger(logger),
		middleware.ProvidePool(pool),
	)

	serverInstance := server.NewHTTPServer(app)
	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// applySchemas executes every embedded schema file. The statements are
// idempotent so running them on each boot is safe.
func applySchemas(ctx context.Context, app application.Application, pool *pgxpool.Pool) error {
	for _, schemaFS := range app.Schemas() {
		err := fs.WalkDir(schemaFS, ".", func(path string, entry fs.DirEntry, err error) error {
			if err != nil || entry.IsDir() || !strings.HasSuffix(path, ".sql") {
				return err
			}
			raw, err := fs.ReadFile(schemaFS, path)
			if err != nil {
				return err
			}
			_, err = pool.Exec(ctx, string(raw))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
