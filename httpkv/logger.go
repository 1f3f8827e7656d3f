package httpkv

import (
	"log/slog"
	"time"
)

// LoggerMode selects the verbosity of the request log line.
type LoggerMode int

const (
	// Prod logs one structured line per request: method, path, status,
	// duration.
	Prod LoggerMode = iota
	// Dev additionally logs the remote address. Handler errors are
	// logged in both modes.
	Dev
)

// LoggerOptions configures the Logger middleware.
type LoggerOptions struct {
	Mode LoggerMode
	Log  *slog.Logger
}

// Logger returns request-logging middleware. Errors returned by the
// wrapped handler are logged here (in addition to being turned into a
// response by the router's error handler) since by the time the error
// handler runs, the request's timing has already been measured.
func Logger(opts LoggerOptions) Middleware {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return func(next Handler) Handler {
		return func(c *Ctx) error {
			start := time.Now()
			err := next(c)
			fields := []any{
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", c.StatusCode()),
				slog.Duration("duration", time.Since(start)),
			}
			if opts.Mode == Dev {
				fields = append(fields, slog.String("remote", c.Request().RemoteAddr))
			}
			if err != nil {
				fields = append(fields, slog.Any("error", err))
				log.Error("request", fields...)
			} else {
				log.Info("request", fields...)
			}
			return err
		}
	}
}
