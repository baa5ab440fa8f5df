package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	secondbrain "github.com/DhruvTemura/second-brain-ai"
	"github.com/DhruvTemura/second-brain-ai/chat"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/labstack/echo/v4"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ingestTextRequest struct {
	Text      string     `json:"text"`
	Title     string     `json:"title"`
	Timestamp *time.Time `json:"timestamp"`
}

type submissionResponse struct {
	SourceID   core.ID         `json:"source_id"`
	JobID      core.ID         `json:"job_id"`
	SourceType core.SourceType `json:"source_type"`
	Title      string          `json:"title"`
	Status     core.JobStatus  `json:"status"`
}

type jobResponse struct {
	JobID       core.ID         `json:"job_id"`
	SourceID    core.ID         `json:"source_id"`
	UserID      string          `json:"user_id"`
	Status      core.JobStatus  `json:"status"`
	Error       string          `json:"error_message,omitempty"`
	SourceTitle string          `json:"title,omitempty"`
	SourceType  core.SourceType `json:"source_type,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type chatRequest struct {
	Query   string `json:"query"`
	Message string `json:"message"`
}

type chatResponse struct {
	Query     string        `json:"query"`
	Answer    string        `json:"answer"`
	Sources   []chat.Source `json:"sources"`
	Timestamp time.Time     `json:"timestamp"`
}

func newSubmissionResponse(sub *secondbrain.Submission) submissionResponse {
	return submissionResponse{
		SourceID:   sub.Source.Id,
		JobID:      sub.Job.Id,
		SourceType: sub.Source.Type,
		Title:      sub.Source.Title,
		Status:     sub.Job.Status,
	}
}

func newJobResponse(job *core.Job) jobResponse {
	return jobResponse{
		JobID:     job.Id,
		SourceID:  job.SourceID,
		UserID:    job.UserID,
		Status:    job.Status,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "ok",
		"message":    "Second Brain API is running",
		"uptime_sec": int(time.Since(s.started).Seconds()),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ingestText(c echo.Context) error {
	var req ingestTextRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest("No text provided", nil)
	}

	note := secondbrain.TextNote{Text: req.Text, Title: req.Title}
	if req.Timestamp != nil {
		note.Timestamp = *req.Timestamp
	}

	sub, err := s.brain.SubmitText(c.Request().Context(), s.userID(c), note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "Text submitted for processing",
		Data:    newSubmissionResponse(sub),
	})
}

func (s *Server) ingestFile(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest("No file uploaded", err)
	}
	if header.Size > s.maxUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}

	f, err := header.Open()
	if err != nil {
		return badRequest("unreadable upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return badRequest("unreadable upload", err)
	}

	sub, err := s.brain.SubmitFile(c.Request().Context(), s.userID(c), secondbrain.FileUpload{
		Filename: header.Filename,
		MimeType: header.Header.Get(echo.HeaderContentType),
		Data:     data,
		Title:    c.FormValue("title"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "File uploaded and queued for processing",
		Data:    newSubmissionResponse(sub),
	})
}

func (s *Server) getJob(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest("invalid job id", err)
	}

	job, err := s.brain.GetJob(c.Request().Context(), core.ID(id))
	if err != nil {
		return err
	}
	if job.UserID != s.userID(c) {
		return echo.NewHTTPError(http.StatusNotFound, "Job not found")
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: newJobResponse(job)})
}

func (s *Server) listJobs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest("limit must be a positive integer", err)
		}
		limit = n
	}

	summaries, err := s.brain.ListJobs(c.Request().Context(), s.userID(c), limit)
	if err != nil {
		return err
	}

	jobs := make([]jobResponse, len(summaries))
	for i, summary := range summaries {
		jobs[i] = newJobResponse(summary.Job)
		jobs[i].SourceTitle = summary.SourceTitle
		jobs[i].SourceType = summary.SourceType
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: jobs})
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", err)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.Message)
	}
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errorBody{
			Error:   "No query provided",
			Message: `Please provide a "query" or "message" field`,
		})
	}

	answer, err := s.brain.Chat(c.Request().Context(), query, s.userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Data: chatResponse{
			Query:     query,
			Answer:    answer.Answer,
			Sources:   answer.Sources,
			Timestamp: time.Now().UTC(),
		},
	})
}

func badRequest(msg string, cause error) *echo.HTTPError {
	body := errorBody{Error: msg}
	if cause != nil {
		body.Message = cause.Error()
	}
	return echo.NewHTTPError(http.StatusBadRequest, body)
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, secondbrain.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, secondbrain.ErrUnsupportedUpload):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status int
		body   errorBody
	)
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		switch m := httpErr.Message.(type) {
		case errorBody:
			body = m
		case string:
			body = errorBody{Error: m}
		default:
			body = errorBody{Error: http.StatusText(status)}
		}
	} else {
		status = statusFor(err)
		body = errorBody{Error: http.StatusText(status), Message: err.Error()}
		if status == http.StatusInternalServerError {
			s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error("failed to write error response", "err", err)
	}
}

func formatBytes(n int64) string {
	return strconv.FormatInt(n, 10) + "B"
}
