package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/datalens/internal/ai"
	"github.com/KaramelBytes/datalens/internal/chart"
	"github.com/KaramelBytes/datalens/internal/export"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/session"
)

// badRequest marks a malformed request.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error    string                    `json:"error"`
	Kind     string                    `json:"kind,omitempty"`
	Warnings []chart.ValidationWarning `json:"warnings,omitempty"`
}

// classify maps an error to its status code and response body. It is the
// only place that knows how error types translate to HTTP.
func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}
	var (
		br  *badRequest
		ie  *ingest.IngestionError
		ve  *chart.ValidationError
		se  *insight.ServiceError
		ce  *ai.ConfigError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, session.ErrNoData):
		body.Kind = "no_data"
		return http.StatusConflict, body
	case errors.As(err, &br):
		return http.StatusBadRequest, body
	case errors.As(err, &mbe):
		body.Kind = "too_large"
		return http.StatusRequestEntityTooLarge, body
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, body
	case errors.As(err, &ie):
		body.Kind = string(ie.Kind)
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &ve):
		body.Kind = "chart_validation"
		body.Warnings = ve.Warnings
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &ce):
		body.Kind = "not_configured"
		return http.StatusServiceUnavailable, body
	case errors.As(err, &se):
		body.Kind = "service"
		return http.StatusBadGateway, body
	}
	return http.StatusInternalServerError, body
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "route", c.FullPath(), "status", status, "error", err)
	} else {
		s.log.Debug("request rejected", "route", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
