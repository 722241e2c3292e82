package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vskvj3/linkd/internal/core"
)

func get(t *testing.T, db *core.Database, path string) (int, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	NewRouter(db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	code, body := get(t, core.NewDatabase(), "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body["status"])
}

func TestKeys(t *testing.T) {
	db := core.NewDatabase()
	require.NoError(t, db.Push("s", "1"))
	require.NoError(t, db.Enqueue("q", "1"))

	code, body := get(t, db, "/api/v1/keys")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{"q", "s"}, body["keys"])
}

func TestKeySnapshot(t *testing.T) {
	db := core.NewDatabase()
	for _, v := range []string{"a", "b"} {
		require.NoError(t, db.ListAdd("l", v))
	}

	code, body := get(t, db, "/api/v1/keys/l")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "list", body["type"])
	assert.Equal(t, float64(2), body["len"])
	assert.Equal(t, []interface{}{"a", "b"}, body["values"])
	assert.Equal(t, float64(1), body["cursor"])
	assert.Equal(t, "[a, b, ]", body["render"])

	require.NoError(t, db.Push("s", "x"))
	_, body = get(t, db, "/api/v1/keys/s")
	assert.NotContains(t, body, "cursor")
}

func TestKeyMissing(t *testing.T) {
	code, body := get(t, core.NewDatabase(), "/api/v1/keys/none")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["status"])
}
