package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(errSentinel, "UNAUTHORIZED", "nope", http.StatusUnauthorized)

	assert.ErrorIs(t, err, errSentinel)
	assert.Equal(t, "UNAUTHORIZED: nope", err.Error())
}

func TestValidationListsMessages(t *testing.T) {
	err := Validation(errSentinel, "email is required", "password is too short")

	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Len(t, err.Errors, 2)
	assert.Contains(t, err.Error(), "email is required; password is too short")
	assert.ErrorIs(t, err, errSentinel)
}

func TestNilErrorIsEmpty(t *testing.T) {
	var err *APIError
	assert.Equal(t, "", err.Error())
	assert.Nil(t, err.Unwrap())
}
