package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Name     string `validate:"required,min=2"`
	Username string `validate:"required,alphanum"`
	Limit    int    `validate:"omitempty,min=1,max=100"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&TestStruct{Name: "Alice", Username: "alice1", Limit: 10})
		assert.NoError(t, err)
	})

	t.Run("invalid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&TestStruct{Name: "A", Username: "not valid!", Limit: 500})
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3)
	})
}

func TestDecodeJSONBody(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	t.Run("single object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Alice"}`))
		var dst body
		assert.NoError(t, DecodeJSONBody(httptest.NewRecorder(), r, &dst))
		assert.Equal(t, "Alice", dst.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Alice","admin":true}`))
		var dst body
		assert.Error(t, DecodeJSONBody(httptest.NewRecorder(), r, &dst))
	})

	t.Run("trailing object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"A"}{"name":"B"}`))
		var dst body
		err := DecodeJSONBody(httptest.NewRecorder(), r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON object")
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&TestStruct{Name: "A"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Name")
		assert.Contains(t, response.Details, "Username")
	})

	t.Run("non-validator error is not expanded", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Bad input", http.StatusBadRequest, errors.New("plain"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}
