package dispatch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feeddb/feeddb/httpkv"
	"github.com/feeddb/feeddb/kvstore/boltstore"
)

func newTestRouter(t *testing.T) *httpkv.Router {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := boltstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CreateKeyspace(ChannelKeyspace))

	r := httpkv.NewRouter()
	Register(r, store)
	return r
}

func do(t *testing.T, r *httpkv.Router, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateKeyspaceAndList(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodPut, "/_db/users/_create_db", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["error"])

	rec = do(t, r, http.MethodGet, "/_db/_all", "")
	body := decodeJSON(t, rec)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Contains(t, data, "users")
	assert.Contains(t, data, ChannelKeyspace)
}

func TestPutAndGetLiteralID(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/_create_db", "").Code)

	rec := do(t, r, http.MethodPut, "/_db/users/1", `{"name":"bob"}`)
	body := decodeJSON(t, rec)
	assert.Equal(t, "1", body["id"])

	rec = do(t, r, http.MethodGet, "/_db/users/1", "")
	body = decodeJSON(t, rec)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "bob", data[0].(map[string]any)["name"])
}

func TestPutAutoGeneratesID(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/_create_db", "").Code)

	rec := do(t, r, http.MethodPut, "/_db/users/_auto", `{"name":"bob"}`)
	body := decodeJSON(t, rec)
	id, _ := body["id"].(string)
	assert.NotEmpty(t, id)
}

func TestPutWithFieldPath(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/_create_db", "").Code)

	rec := do(t, r, http.MethodPut, "/_db/users/_auto?field_path=user.id", `{"user":{"id":"abc123"}}`)
	body := decodeJSON(t, rec)
	assert.Equal(t, "abc123", body["id"])

	rec = do(t, r, http.MethodGet, "/_db/users/abc123", "")
	body = decodeJSON(t, rec)
	data := body["data"].([]any)
	require.Len(t, data, 1)
}

func TestGetMissingKeyReturnsApplicationErrorAt200(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/_create_db", "").Code)

	rec := do(t, r, http.MethodGet, "/_db/users/missing", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["error"])
	assert.NotEmpty(t, body["cause"])
}

func TestRangeAllOrdersForwardAndReverse(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/_create_db", "").Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/a", `{"n":1}`).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/b", `{"n":2}`).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/c", `{"n":3}`).Code)

	rec := do(t, r, http.MethodGet, "/_db/items/_all", "")
	lines := nonEmptyLines(rec.Body.String())
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"n":1}`, lines[0])
	assert.JSONEq(t, `{"n":3}`, lines[2])

	rec = do(t, r, http.MethodGet, "/_db/items/_all_reverse", "")
	lines = nonEmptyLines(rec.Body.String())
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"n":3}`, lines[0])
	assert.JSONEq(t, `{"n":1}`, lines[2])
}

func TestRangeWithLimitAndSkip(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/_create_db", "").Code)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/"+id, `{"id":"`+id+`"}`).Code)
	}

	rec := do(t, r, http.MethodGet, "/_db/items/_all?skip=1&limit=2", "")
	lines := nonEmptyLines(rec.Body.String())
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"b"}`, lines[0])
	assert.JSONEq(t, `{"id":"c"}`, lines[1])
}

func TestSinceStreamsTopicMarkerThenItems(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/_create_db", "").Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/a", `{"n":1}`).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/items/b", `{"n":2}`).Code)

	rec := do(t, r, http.MethodGet, "/_db/items/_since/a/_topic/mytopic", "")
	lines := nonEmptyLines(rec.Body.String())
	require.Len(t, lines, 3)
	assert.Equal(t, "_topic:mytopic", lines[0])
	assert.JSONEq(t, `{"n":1}`, lines[1])
}

func TestSQLSelectFiltersAndProjects(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/_create_db", "").Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/1", `{"name":"a","age":10}`).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/_db/users/2", `{"name":"b","age":30}`).Code)

	rec := do(t, r, http.MethodPost, "/_sql", `SELECT name FROM users WHERE age > 18`)
	lines := nonEmptyLines(rec.Body.String())
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"name":"b"}`, lines[0])
}

func nonEmptyLines(s string) []string {
	scanner := bufio.NewScanner(bytes.NewBufferString(s))
	var out []string
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
