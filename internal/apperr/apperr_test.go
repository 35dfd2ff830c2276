package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusByType(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("bad input").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("missing").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Internal("boom", nil).HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, External("upstream", nil).HTTPStatus())
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := External("analyzer unreachable", cause)

	assert.Contains(t, err.Error(), "external")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestFromPassesThroughStructuredErrors(t *testing.T) {
	original := NotFound("no such country")
	wrapped := fmt.Errorf("handling request: %w", original)

	got := From(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, TypeNotFound, got.Type)
	assert.Equal(t, "no such country", got.Message)
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	got := From(errors.New("mystery"))
	require.NotNil(t, got)
	assert.Equal(t, TypeInternal, got.Type)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus())
}

func TestFromNil(t *testing.T) {
	assert.Nil(t, From(nil))
}
