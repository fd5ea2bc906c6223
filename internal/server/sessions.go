package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
)

func (s *Server) newSession(r *relay) *session.Session {
	return session.New(session.Deps{
		Normalizer: s.normalizer,
		Backend:    s.backend,
		Language:   s.cfg.TranscriptLanguage,
		UILanguage: s.cfg.Language,
		TempDir:    s.cfg.Media.TempDir,
		LiveDelay:  s.cfg.Session.LiveDelay,
		Observer:   r.publish,
	})
}

func sessionView(sess *session.Session) gin.H {
	data := gin.H{
		"id":       sess.ID(),
		"filename": sess.Filename(),
		"state":    sess.State(),
	}
	if res := sess.Result(); res != nil {
		data["text"] = res.Text()
		data["backend"] = res.Backend
		if res.HasConfidence {
			data["confidence"] = res.Confidence
		}
	}
	if err := sess.Err(); err != nil {
		data["kind"] = session.Classify(err)
	}
	return data
}

// handleCreateSession accepts a multipart "file" upload.
func (s *Server) handleCreateSession(c *gin.Context) {
	maxBytes := s.cfg.Server.MaxUploadMB << 20
	if maxBytes > 0 {
		if c.Request.ContentLength > maxBytes {
			s.uploadTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: "multipart field \"file\" is required",
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: fmt.Sprintf("failed to read upload: %v", err),
		})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: fmt.Sprintf("failed to read upload: %v", err),
		})
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}

	r := &relay{}
	sess := s.newSession(r)
	if err := sess.Upload(session.Upload{Data: data, Filename: fh.Filename, MIMEType: mimeType}); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    gin.H{"kind": session.Classify(err)},
			Message: session.UserMessage(err, s.cfg.Language),
		})
		return
	}
	s.store.Add(sess, r)

	view := sessionView(sess)
	view["size"] = len(data)
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    view,
		Message: "session created",
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess := s.store.Get(c.Param("id"))
	if sess == nil {
		s.sessionNotFound(c)
		return
	}
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    sessionView(sess),
		Message: sess.State().String(),
	})
}

// handleTranscribeSSE runs the transcription and streams its events as
// Server-Sent Events. Disconnecting abandons the session.
func (s *Server) handleTranscribeSSE(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	w := c.Writer
	sess, err := s.store.begin(id, cancel, func(e session.Event) {
		c.SSEvent(string(e.Type), e)
		w.Flush()
	})
	if err != nil {
		s.beginFailed(c, err)
		return
	}
	defer s.store.finish(id)

	if st := sess.State(); st != session.Uploaded {
		c.JSON(http.StatusConflict, Response{
			Code:    409,
			Data:    gin.H{"state": st},
			Message: fmt.Sprintf("session is %s", st),
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	w.Flush()

	// failures are delivered as error events
	sess.Transcribe(ctx)
}

func (s *Server) handleTranscript(c *gin.Context) {
	sess := s.store.Get(c.Param("id"))
	if sess == nil {
		s.sessionNotFound(c)
		return
	}

	art, err := sess.Artifact()
	if err != nil {
		c.JSON(http.StatusConflict, Response{
			Code:    409,
			Data:    gin.H{"state": sess.State()},
			Message: "transcript not available",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.store.Remove(id) {
		s.sessionNotFound(c)
		return
	}
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"id": id},
		Message: "session removed",
	})
}

func (s *Server) sessionNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code:    404,
		Data:    nil,
		Message: "session not found",
	})
}

func (s *Server) beginFailed(c *gin.Context, err error) {
	if errors.Is(err, errSessionNotFound) {
		s.sessionNotFound(c)
		return
	}
	c.JSON(http.StatusConflict, Response{
		Code:    409,
		Data:    nil,
		Message: err.Error(),
	})
}

func (s *Server) uploadTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, Response{
		Code:    413,
		Data:    nil,
		Message: fmt.Sprintf("file exceeds %d MB", s.cfg.Server.MaxUploadMB),
	})
}
