package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{NotFound("no such channel"), http.StatusNotFound},
		{Forbidden("not a participant"), http.StatusForbidden},
		{Conflict("already joined"), http.StatusConflict},
		{Configuration("global channels missing"), http.StatusInternalServerError},
		{Internal("boom", errors.New("cause")), http.StatusInternalServerError},
		{errors.New("untyped"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "error: %v", c.err)
	}
}

func TestIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("handling request: %w", NotFound("channel not found"))

	assert.True(t, errors.Is(err, NotFound("")))
	assert.False(t, errors.Is(err, Forbidden("")))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("query failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}
