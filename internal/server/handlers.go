package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/datalens/internal/chart"
	"github.com/KaramelBytes/datalens/internal/export"
	"github.com/KaramelBytes/datalens/internal/ingest"
	"github.com/KaramelBytes/datalens/internal/metrics"
	"github.com/KaramelBytes/datalens/internal/session"
	"github.com/KaramelBytes/datalens/internal/table"
)

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.store.Create()
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "created": sess.Created})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.store.Delete(c.Param("id")) {
		s.fail(c, session.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpload(c *gin.Context, sess *session.Session) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.fail(c, err)
			return
		}
		s.fail(c, &badRequest{msg: "no file uploaded: expected multipart field \"file\""})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(c, fmt.Errorf("read upload: %w", err))
		return
	}
	res, err := ingest.Ingest(c.Request.Context(), header.Filename, data, s.ingest)
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if res != nil {
		format = res.Format
	}
	metrics.UploadsTotal.WithLabelValues(format, metrics.Outcome(err)).Inc()
	if err != nil {
		s.fail(c, err)
		return
	}
	metrics.UploadRows.Observe(float64(res.Table.Len()))
	s.log.Info("dataset loaded",
		"session", sess.ID,
		"file", header.Filename,
		"format", res.Format,
		"encoding", res.Encoding,
		"rows", res.Table.Len(),
		"columns", res.Table.Width(),
	)

	sess.SetSource(header.Filename, res)
	c.JSON(http.StatusOK, overview(sess))
}

func (s *Server) handleOverview(c *gin.Context, sess *session.Session) {
	if !sess.HasData() {
		s.fail(c, session.ErrNoData)
		return
	}
	c.JSON(http.StatusOK, overview(sess))
}

func (s *Server) handleView(c *gin.Context, sess *session.Session) {
	var v table.View
	if err := c.ShouldBindJSON(&v); err != nil {
		s.fail(c, &badRequest{msg: "invalid view: " + err.Error()})
		return
	}
	if err := sess.ApplyView(v); err != nil {
		if errors.Is(err, session.ErrNoData) {
			s.fail(c, err)
			return
		}
		s.fail(c, &badRequest{msg: err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview(sess))
}

func (s *Server) handleGenerateInsights(c *gin.Context, sess *session.Session) {
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.adapter.GenerateInsights(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess.Insights = p
	c.JSON(http.StatusOK, gin.H{"insights": p})
}

func (s *Server) handleGetInsights(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{"insights": sess.Insights})
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleQuery(c *gin.Context, sess *session.Session) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &badRequest{msg: "invalid query: " + err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.fail(c, &badRequest{msg: "question is required"})
		return
	}
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.adapter.ProcessQuery(c.Request.Context(), t, question)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess.Record(s.clock.Now(), res)
	c.JSON(http.StatusOK, renderQuery(res))
}

func (s *Server) handleHistory(c *gin.Context, sess *session.Session) {
	out := make([]historyEntry, len(sess.History))
	for i, e := range sess.History {
		out[i] = historyEntry{At: e.At, queryResponse: renderQuery(e.Result)}
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (s *Server) handleChartAvailability(c *gin.Context, sess *session.Session) {
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	warnings := map[chart.Kind][]chart.ValidationWarning{}
	for _, k := range chart.Kinds {
		if w := chart.Check(t, k); len(w) > 0 {
			warnings[k] = w
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"kinds":     chart.Kinds,
		"available": chart.Availability(t),
		"warnings":  warnings,
	})
}

func (s *Server) handleBuildChart(c *gin.Context, sess *session.Session) {
	var req chart.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &badRequest{msg: "invalid chart request: " + err.Error()})
		return
	}
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	spec, err := chart.Build(t, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, spec)
}

func (s *Server) handleAutoCharts(c *gin.Context, sess *session.Session) {
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	charts, warnings := chart.Auto(t)
	for _, w := range warnings {
		s.log.Debug("auto chart omitted", "session", sess.ID, "reason", w)
	}
	c.JSON(http.StatusOK, gin.H{"charts": charts, "warnings": warnings})
}

func (s *Server) handleDashboard(c *gin.Context, sess *session.Session) {
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charts": chart.Dashboard(t)})
}

func (s *Server) handleExport(c *gin.Context, sess *session.Session) {
	f, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := sess.Table()
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := s.writer.Export(f, t, sess.Insights)
	if err != nil {
		s.fail(c, err)
		return
	}
	name := f.Filename(sess.Name, s.clock.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, f.ContentType(), out)
}
