package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/linkshort/pkg/app"
	"github.com/wadjakorntonsri/linkshort/pkg/config"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	// On Vercel a local SQLite file is ephemeral; point DATABASE_URL at Turso, MySQL or Postgres.
	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		panic(err)
	}
	mux = application.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
