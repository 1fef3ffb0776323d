package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/model"
)

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Status())
}

func (s *Server) listItems(c *gin.Context) {
	room := c.Param("room")
	snap, err := s.feed.Snapshot(c.Request.Context(), room)
	if err != nil {
		s.fail(c, err)
		return
	}
	if snap == nil {
		snap = model.Snapshot{}
	}
	c.JSON(http.StatusOK, feed.ItemsResponse{Room: room, Items: snap})
}

func (s *Server) createItem(c *gin.Context) {
	var item model.StoredItem
	if err := decodeBody(c, &item); err != nil {
		s.fail(c, err)
		return
	}
	id, err := s.feed.Create(c.Request.Context(), c.Param("room"), item)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, feed.CreateResponse{ID: id})
}

func (s *Server) patchItem(c *gin.Context) {
	var p model.Patch
	if err := decodeBody(c, &p); err != nil {
		s.fail(c, err)
		return
	}
	if p.Empty() {
		s.fail(c, errs.Validation("empty patch"))
		return
	}
	if err := s.feed.Write(c.Request.Context(), c.Param("room"), c.Param("id"), p); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteItem(c *gin.Context) {
	if err := s.feed.Delete(c.Request.Context(), c.Param("room"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearItems(c *gin.Context) {
	if err := s.feed.DeleteAll(c.Request.Context(), c.Param("room")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) socket(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request, c.Param("room"))
}

func decodeBody(c *gin.Context, v any) error {
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errs.Validation("request body too large")
		}
		return errs.New(errs.KindValidation, "malformed JSON body", err)
	}
	return nil
}

// fail writes err as an ErrorBody with the status its kind maps to.
func (s *Server) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusOf(kind)
	msg := err.Error()
	if status >= 500 {
		_ = c.Error(err)
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	}
	abortWithError(c, status, string(kind), msg)
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
