package backend_test

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/galaxy/core/backend"
)

func TestNewPanicsWithoutDB(t *testing.T) {
	assert.Panics(t, func() {
		backend.New(&backend.Builder{Router: mux.NewRouter()})
	})
	s := CreateTestService(t)
	assert.Panics(t, func() {
		backend.New(&backend.Builder{DB: s.Db})
	})
}

func TestSitemap(t *testing.T) {
	s := CreateTestService(t)

	var sitemap []struct {
		Path    string   `json:"path"`
		Methods []string `json:"methods"`
	}
	_, err := s.client.RawGet("/", &sitemap)
	require.NoError(t, err)

	methods := map[string][]string{}
	for _, route := range sitemap {
		methods[route.Path] = route.Methods
	}
	assert.Equal(t, []string{"GET", "POST"}, methods["/planets"])
	assert.Equal(t, []string{"DELETE", "GET", "PUT"}, methods["/planets/{id:[0-9]+}"])
	assert.Equal(t, []string{"DELETE", "POST"}, methods["/favorite/people/{people_id:[0-9]+}"])
	assert.Equal(t, []string{"GET"}, methods["/users/favorites"])
	assert.Equal(t, []string{"GET"}, methods["/"])
}

func TestSitemapSkipsRoutesWithoutPath(t *testing.T) {
	s := CreateTestService(t)
	s.Router.NewRoute().MatcherFunc(func(r *http.Request, m *mux.RouteMatch) bool { return false })

	var sitemap []struct {
		Path string `json:"path"`
	}
	status, err := s.client.RawGet("/", &sitemap)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	for _, route := range sitemap {
		assert.NotEmpty(t, route.Path)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := CreateTestService(t)

	r := httptest.NewRequest(http.MethodOptions, "/planets", nil)
	r.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	s.backend.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRequestID(t *testing.T) {
	s := CreateTestService(t)

	r := httptest.NewRequest(http.MethodGet, "/planets", nil)
	r.Header.Set("X-Request-Id", "r2d2")
	w := httptest.NewRecorder()
	s.backend.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r2d2", w.Header().Get("X-Request-Id"))

	// a request without ID gets a fresh one
	r = httptest.NewRequest(http.MethodGet, "/planets", nil)
	w = httptest.NewRecorder()
	s.backend.ServeHTTP(w, r)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestCompression(t *testing.T) {
	s := CreateTestService(t)
	s.createPlanet(t, "Bespin")

	r := httptest.NewRequest(http.MethodGet, "/planets", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.backend.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"name":"Bespin"`)
}

func TestCompressedRequestBody(t *testing.T) {
	s := CreateTestService(t)

	var buf strings.Builder
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"name":"Mustafar","climate":"hot","terrain":"volcanoes","population":"20000"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r := httptest.NewRequest(http.MethodPost, "/planets", strings.NewReader(buf.String()))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.backend.ServeHTTP(w, r)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Mustafar"`)
}

func TestUnknownRoute(t *testing.T) {
	s := CreateTestService(t)

	status, err := s.client.RawGet("/starships", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Error(t, err)

	status, err = s.client.RawPost("/planets/1", map[string]string{"name": "Coruscant"}, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Error(t, err)
}
