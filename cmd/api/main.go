package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"linoslms.org/internal/audit"
	"linoslms.org/internal/httpapi"
	"linoslms.org/internal/migrate"
	"linoslms.org/internal/obs"
	"linoslms.org/internal/records"
	"linoslms.org/internal/session"
	"linoslms.org/internal/storage"
)

var version = "1.2.0"

func main() {
	_ = godotenv.Load()

	obs.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, backend, err := openBackend(ctx)
	cancel()
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}

	store := records.NewStore(backend)
	if err := store.Seed(context.Background()); err != nil {
		log.Fatalf("seed: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Store:      store,
		Auditor:    audit.NewRecorder(store),
		Sessions:   session.NewManager(),
		Notices:    session.NewCenter(),
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
	})

	addr := os.Getenv("LMS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting linoslms-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// openBackend picks PostgreSQL when a DSN is configured and otherwise
// falls back to a local SQLite file. Either way the schema is migrated
// before the store sees it.
func openBackend(ctx context.Context) (*sql.DB, storage.Backend, error) {
	driver, dsn := "sqlite", os.Getenv("LMS_SQLITE_PATH")
	if dsn == "" {
		dsn = "linoslms.db"
	}
	if pg := os.Getenv("LMS_PG_DSN"); pg != "" {
		driver, dsn = "pgx", pg
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if driver == "pgx" {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// modernc sqlite is in-process; a single writer avoids lock
		// contention on the file.
		db.SetMaxOpenConns(1)
	}

	if err := migrate.NewManager(db, migrate.Builtin).Up(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, storage.NewSQL(db), nil
}
