package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	require.NoError(t, client.Acquire(context.Background()))
	require.NoError(t, client.Release(context.Background()))

	assert.Equal(t, []string{"/model/load", "/model/unload"}, paths)
}

func TestAcquireServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewClient(server.URL).Acquire(context.Background())
	assert.ErrorContains(t, err, "status 500")
}

func TestAcquireUnreachableAnalyzer(t *testing.T) {
	err := NewClient("http://127.0.0.1:1").Acquire(context.Background())
	assert.Error(t, err)
}
