package internal_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antonio-alexander/go-attendance/internal"

	"github.com/stretchr/testify/assert"
)

func TestDoRequestLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		default:
			_, _ = io.WriteString(writer, `{"id":1}`)
		case "/large":
			_, _ = io.WriteString(writer, `{"name":"`+strings.Repeat("a", 64)+`"}`)
		case "/missing":
			writer.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(writer, strings.Repeat("b", 64))
		}
	}))
	defer server.Close()
	ctx := context.TODO()

	// within the limit
	var v struct {
		Id int64 `json:"id"`
	}
	_, err := internal.DoRequestLimit(ctx, server.Client(), 16, server.URL, http.MethodGet, nil, &v)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), v.Id)

	// over the limit
	_, err = internal.DoRequestLimit(ctx, server.Client(), 16, server.URL+"/large", http.MethodGet, nil)
	assert.True(t, errors.Is(err, internal.ErrResponseTooLarge))

	// no limit
	byts, err := internal.DoRequest(ctx, server.Client(), server.URL+"/large", http.MethodGet, nil)
	assert.Nil(t, err)
	assert.Len(t, byts, 75)

	// error bodies are truncated
	_, err = internal.DoRequestLimit(ctx, server.Client(), 16, server.URL+"/missing", http.MethodGet, nil)
	var statusError *internal.StatusError
	if assert.True(t, errors.As(err, &statusError)) {
		assert.Equal(t, http.StatusNotFound, statusError.StatusCode)
		assert.Len(t, statusError.Body, 16)
	}
}
