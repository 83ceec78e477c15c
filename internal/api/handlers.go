package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yangwenmai/reviewer/internal/model"
	"github.com/yangwenmai/reviewer/internal/service"
)

// Generator is the use case behind the handlers.
type Generator interface {
	Generate(ctx context.Context, req service.Request) (*service.Response, error)
	Get(ctx context.Context, userID string, f model.FeatureType, id model.ReviewerID) (*service.Response, error)
	List(ctx context.Context, userID string, f model.FeatureType) ([]model.ReviewerSummary, error)
}

// ---------------------------------------------------------------------------
// POST /feature/:type
// ---------------------------------------------------------------------------

type featureRequest struct {
	Markdown   string `json:"markdown"`
	URL        string `json:"url"`
	SourceType string `json:"sourceType"`
}

func (s *Server) handleFeature(c *gin.Context) {
	feature, err := model.ParseFeature(c.Param("type"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	req := service.Request{UserID: userID(c), Feature: feature}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Markdown = c.PostForm("markdown")
		req.URL = c.PostForm("url")
		req.SourceType = c.PostForm("sourceType")

		fh, err := c.FormFile("file")
		switch {
		case err == nil:
			path, err := s.saveUpload(c, fh)
			if err != nil {
				s.log.Error("save upload failed", "error", err)
				writeError(c, http.StatusInternalServerError, "failed to store upload")
				return
			}
			defer os.Remove(path)
			req.FilePath = path
			req.MimeType = fh.Header.Get("Content-Type")
		case !errors.Is(err, http.ErrMissingFile):
			writeError(c, http.StatusBadRequest, "invalid upload: "+err.Error())
			return
		}
	} else {
		var body featureRequest
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(c, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Markdown = body.Markdown
		req.URL = body.URL
		req.SourceType = body.SourceType
	}

	resp, err := s.svc.Generate(c.Request.Context(), req)
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

// saveUpload stores an uploaded file under a random name in the upload dir.
func (s *Server) saveUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	dir := s.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// ---------------------------------------------------------------------------
// GET /reviewers/:type
// ---------------------------------------------------------------------------

func (s *Server) handleListReviewers(c *gin.Context) {
	feature, err := model.ParseFeature(c.Param("type"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	list, err := s.svc.List(c.Request.Context(), userID(c), feature)
	if err != nil {
		writeError(c, statusFor(err), "failed to list reviewers")
		return
	}
	if list == nil {
		list = []model.ReviewerSummary{}
	}
	writeJSON(c, http.StatusOK, gin.H{"reviewers": list})
}

// ---------------------------------------------------------------------------
// GET /reviewers/:type/:id
// ---------------------------------------------------------------------------

func (s *Server) handleGetReviewer(c *gin.Context) {
	feature, err := model.ParseFeature(c.Param("type"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	resp, err := s.svc.Get(c.Request.Context(), userID(c), feature, model.ReviewerID(c.Param("id")))
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	writeJSON(c, http.StatusOK, resp)
}
