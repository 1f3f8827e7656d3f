package httpkv

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/feeddb/feeddb/errs"
)

// Ctx carries a single request/response pair plus resolved path
// parameters through a Handler chain.
type Ctx struct {
	w      http.ResponseWriter
	r      *http.Request
	params map[string]string
	log    *slog.Logger

	status      int
	wroteHeader bool
}

func newCtx(w http.ResponseWriter, r *http.Request, params map[string]string, log *slog.Logger) *Ctx {
	return &Ctx{w: w, r: r, params: params, log: log, status: http.StatusOK}
}

// Request returns the underlying *http.Request.
func (c *Ctx) Request() *http.Request { return c.r }

// Context returns the request's context.
func (c *Ctx) Context() context.Context { return c.r.Context() }

// Writer returns the underlying http.ResponseWriter, for handlers that
// need to stream raw bytes themselves.
func (c *Ctx) Writer() http.ResponseWriter { return c.w }

// Logger returns the context's logger, pre-bound with per-request fields
// by the Logger middleware if installed.
func (c *Ctx) Logger() *slog.Logger { return c.log }

// Param returns the path parameter captured under name, or "" if absent.
func (c *Ctx) Param(name string) string { return c.params[name] }

// Query returns a single query-string value, or "" if absent.
func (c *Ctx) Query(name string) string { return c.r.URL.Query().Get(name) }

// QueryValues returns every value of a repeated query parameter.
func (c *Ctx) QueryValues(name string) []string { return c.r.URL.Query()[name] }

// Header sets a response header and returns c for chaining.
func (c *Ctx) Header(key, value string) *Ctx {
	c.w.Header().Set(key, value)
	return c
}

// Status sets the status code written by the first Write/WriteString
// call and returns c for chaining. JSON, Text, NoContent and Stream take
// their own status code and overwrite it.
func (c *Ctx) Status(code int) *Ctx {
	c.status = code
	return c
}

// StatusCode reports the status that will be (or was) written.
func (c *Ctx) StatusCode() int { return c.status }

func (c *Ctx) writeHeader() {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.w.WriteHeader(c.status)
}

// Bind decodes the request body as JSON into v.
func (c *Ctx) Bind(v any) error {
	if err := json.NewDecoder(c.r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.BodyParsingError, err)
	}
	return nil
}

// Bytes reads the full, raw request body.
func (c *Ctx) Bytes() ([]byte, error) {
	defer c.r.Body.Close()
	buf := make([]byte, 0, 512)
	tmp := make([]byte, 4096)
	for {
		n, err := c.r.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

// JSON writes v as a JSON response with the given status.
func (c *Ctx) JSON(code int, v any) error {
	c.status = code
	c.Header("Content-Type", "application/json")
	c.writeHeader()
	return json.NewEncoder(c.w).Encode(v)
}

// Text writes s as a plain-text response with the given status.
func (c *Ctx) Text(code int, s string) error {
	c.status = code
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.writeHeader()
	_, err := c.w.Write([]byte(s))
	return err
}

// NoContent writes an empty body with the given status.
func (c *Ctx) NoContent(code int) error {
	c.status = code
	c.writeHeader()
	return nil
}

// Write implements io.Writer over the response body, flushing the status
// line on first use.
func (c *Ctx) Write(p []byte) (int, error) {
	c.writeHeader()
	return c.w.Write(p)
}

// WriteString is a convenience wrapper over Write.
func (c *Ctx) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// Flush pushes buffered bytes to the client immediately, for long-lived
// streamed responses.
func (c *Ctx) Flush() {
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Stream begins a chunked response of contentType at the given status and
// hands the writer to fn, flushing after every write fn makes that
// reaches the wrapped flushWriter.
func (c *Ctx) Stream(code int, contentType string, fn func(w interface{ Write([]byte) (int, error) }) error) error {
	c.status = code
	c.Header("Content-Type", contentType)
	c.writeHeader()
	return fn(&flushWriter{c: c})
}

type flushWriter struct{ c *Ctx }

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.c.w.Write(p)
	fw.c.Flush()
	return n, err
}

// SetWriteDeadline extends the connection's write deadline without limit
// by clearing it through rc, for handlers that stream indefinitely (e.g.
// _since/_topic).
func (c *Ctx) SetWriteDeadline(rc *http.ResponseController) {
	if rc == nil {
		return
	}
	_ = rc.SetWriteDeadline(time.Time{})
}

// Hijack takes over the underlying TCP connection.
func (c *Ctx) Hijack() (interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
}, *bufio.ReadWriter, error) {
	hj, ok := c.w.(http.Hijacker)
	if !ok {
		return nil, nil, errs.New(errs.Db)
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}
	return conn, rw, nil
}

// defaultErrorHandler maps every dispatcher error onto the application's
// own {error, cause, db?} envelope at HTTP 200 — per the core's error
// model, only transport-level framing failures are reported via HTTP
// status; everything the core itself raises is an application-level
// error inside a normal response body.
func defaultErrorHandler(c *Ctx, err error) {
	body := map[string]any{"error": true, "cause": humanCause(err)}
	if e, ok := err.(*errs.Error); ok && e.Key != "" {
		body["db"] = e.Key
	}
	c.status = http.StatusOK
	c.Header("Content-Type", "application/json")
	c.writeHeader()
	_ = json.NewEncoder(c.w).Encode(body)
}

func humanCause(err error) string {
	return err.Error()
}
