// Command feeddb starts the HTTP-fronted key/value store: an embedded
// bbolt file, the mutator/channel pipeline, the SQL evaluator, and the
// dispatcher that ties them to the HTTP surface.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/feeddb/feeddb/dispatch"
	"github.com/feeddb/feeddb/httpkv"
	"github.com/feeddb/feeddb/kvstore/boltstore"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		path      = pflag.String("path", envOr("FEEDB_PATH", envOr("STORAGE", "feeddb.db")), "bbolt data file path")
		addr      = pflag.String("addr", envOr("FEEDB_ADDR", ":8080"), "HTTP listen address")
		logFormat = pflag.String("log-format", envOr("FEEDB_LOG_FORMAT", "text"), "log output format: text or json")
		logLevel  = pflag.String("log-level", envOr("FEEDB_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	)
	pflag.Parse()

	log := newLogger(*logFormat, *logLevel)
	slog.SetDefault(log)

	store, err := boltstore.Open(*path)
	if err != nil {
		log.Error("opening store", slog.Any("error", err), slog.String("path", *path))
		os.Exit(1)
	}
	defer store.Close()

	if err := store.CreateKeyspace(dispatch.ChannelKeyspace); err != nil {
		log.Error("creating channel keyspace", slog.Any("error", err))
		os.Exit(1)
	}

	app := httpkv.New(log)
	app.Use(httpkv.Logger(httpkv.LoggerOptions{Mode: httpkv.Prod, Log: log}))
	dispatch.Register(app.Router, store)

	log.Info("feeddb starting", slog.String("addr", *addr), slog.String("path", *path))
	if err := app.Listen(*addr); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
