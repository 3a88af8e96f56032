package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   string
	header http.Header
}

func echoHandler(last *recorded) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*last = recorded{method: r.Method, path: r.URL.Path, body: string(body), header: r.Header.Clone()}
		switch {
		case r.URL.Path == "/planets/404":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"msg":"Planet not found"}`))
		case r.URL.Path == "/broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Error 4711\n"))
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":1}`))
		default:
			w.Write([]byte(`{"id":1}`))
		}
	})
}

func TestClientPaths(t *testing.T) {
	client := NewWithHandler(nil)

	collection := client.Collection("planets/")
	if p := collection.Path(); p != "/planets" {
		t.Fatal("unexpected collection path:", p)
	}

	item := collection.Item(42)
	if p := item.Path(); p != "/planets/42" {
		t.Fatal("unexpected item path:", p)
	}
}

func TestClientRequests(t *testing.T) {
	var last recorded
	client := NewWithHandler(echoHandler(&last)).WithToken("secret").WithHeader("X-Request-Id", "abc")

	var result map[string]interface{}
	status, err := client.Collection("planets").Create(map[string]string{"name": "Hoth"}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), result["id"])
	assert.Equal(t, http.MethodPost, last.method)
	assert.JSONEq(t, `{"name":"Hoth"}`, last.body)
	assert.Equal(t, "Bearer secret", last.header.Get("Authorization"))
	assert.Equal(t, "abc", last.header.Get("X-Request-Id"))

	status, err = client.Collection("planets").Item(1).Update([]byte(`{"climate":"frozen"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/planets/1", last.path)
	assert.Equal(t, `{"climate":"frozen"}`, last.body)

	var raw []byte
	_, err = client.Collection("planets").List(&raw)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(raw))

	status, err = client.Collection("planets").Item(1).Delete()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.MethodDelete, last.method)
	assert.Empty(t, last.body)
}

func TestClientErrors(t *testing.T) {
	var last recorded
	client := NewWithHandler(echoHandler(&last))

	status, err := client.Collection("planets").Item(404).Read(nil)
	assert.Equal(t, http.StatusNotFound, status)
	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "Planet not found", clientErr.Message)

	status, err = client.RawGet("/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "Error 4711", clientErr.Message)
}

func TestClientRequestWithoutBody(t *testing.T) {
	var hasBody bool
	client := NewWithHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody = r.Body != nil
		w.WriteHeader(http.StatusCreated)
	}))

	status, err := client.RawPost("/favorite/planet/1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.True(t, hasBody)
}

func TestClientWithHeaderCopies(t *testing.T) {
	base := NewWithHandler(nil)
	a := base.WithHeader("A", "1")
	b := a.WithHeader("B", "2")
	assert.Empty(t, base.defaultHeaders)
	assert.Len(t, a.defaultHeaders, 1)
	assert.Len(t, b.defaultHeaders, 2)
}

func TestClientWithURL(t *testing.T) {
	var last recorded
	server := httptest.NewServer(echoHandler(&last))
	defer server.Close()

	client := NewWithURL(server.URL + "/").WithToken("secret")
	var result map[string]interface{}
	status, err := client.RawPost("/favorite/planet/1", nil, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "/favorite/planet/1", last.path)
	assert.Equal(t, "Bearer secret", last.header.Get("Authorization"))

	status, err = client.Collection("planets").Item(404).Read(nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.EqualError(t, err, "unexpected status 404: Planet not found")
}
