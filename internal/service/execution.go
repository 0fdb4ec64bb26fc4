package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/antonio-alexander/go-attendance/internal/data"
)

var errBadRequest = errors.New("bad request")

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(bytes []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(bytes)
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %s", errBadRequest, err)
}

func idFromPath(pathVariables map[string]string) (int64, error) {
	id, err := strconv.ParseInt(pathVariables[data.PathId], 10, 64)
	if err != nil {
		return 0, badRequest(err)
	}
	return id, nil
}

func errorStatus(err error) int {
	switch {
	default:
		return http.StatusInternalServerError
	case errors.Is(err, errBadRequest), data.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, data.ErrEmployeeConflict):
		return http.StatusConflict
	case errors.Is(err, data.ErrMutationDisabled):
		return http.StatusForbidden
	}
}

// errorResponse is the body of every api error, fields is only set for
// validation errors.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *service) handleResponse(writer http.ResponseWriter, err error, items ...any) {
	var bytes []byte

	if err == nil {
		switch {
		default:
			bytes, err = json.Marshal(items[0])
		case len(items) == 0 || items[0] == nil:
			writer.WriteHeader(http.StatusNoContent)
			return
		}
	}
	if err != nil {
		var validationError *data.ValidationError

		e := errorResponse{Error: err.Error()}
		if errors.As(err, &validationError) {
			e.Fields = validationError.Fields
		}
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.Error(s.ctx, "error while handling request: %s", err)
		}
		bytes, err = json.Marshal(&e)
		if err != nil {
			s.Error(s.ctx, "error handling response: %s", err)
			return
		}
		writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		writer.WriteHeader(status)
		if _, err := writer.Write(bytes); err != nil {
			s.Error(s.ctx, "error handling response: %s", err)
		}
		return
	}
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, err := writer.Write(bytes); err != nil {
		s.Error(s.ctx, "error handling response: %s", err)
	}
}
