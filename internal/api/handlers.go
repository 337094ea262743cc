package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/levels"
	"github.com/betbot/levelalarm/internal/monitor"
)

type levelsResponse struct {
	Levels []float64 `json:"levels"`
	Dirty  bool      `json:"dirty"`
}

type addLevelsRequest struct {
	Value  *float64  `json:"value"`
	Values []float64 `json:"values"`
}

type addLevelsResponse struct {
	Added     []float64 `json:"added"`
	Duplicate []float64 `json:"duplicate,omitempty"`
}

type statusResponse struct {
	Monitor  *monitor.Status `json:"monitor,omitempty"`
	LastTick *domain.Tick    `json:"last_tick,omitempty"`
	Levels   int             `json:"levels"`
}

func (s *Server) levels() levelsResponse {
	out := s.store.Sorted()
	return levelsResponse{Levels: out, Dirty: s.store.Dirty()}
}

func (s *Server) handleLevelsList(c *gin.Context) {
	c.JSON(http.StatusOK, s.levels())
}

func (s *Server) handleLevelsAdd(c *gin.Context) {
	var req addLevelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	values := req.Values
	if req.Value != nil {
		values = append(values, *req.Value)
	}
	if len(values) == 0 {
		writeError(c, http.StatusBadRequest, "value or values is required")
		return
	}
	for _, v := range values {
		if !domain.ValidPrice(v) {
			writeError(c, http.StatusBadRequest, "levels must be finite non-negative numbers")
			return
		}
	}

	resp := addLevelsResponse{Added: []float64{}}
	for _, v := range values {
		switch err := s.store.Add(v); {
		case errors.Is(err, levels.ErrDuplicate):
			resp.Duplicate = append(resp.Duplicate, v)
		case err != nil:
			writeError(c, http.StatusBadRequest, err.Error())
			return
		default:
			resp.Added = append(resp.Added, v)
		}
	}
	if len(resp.Added) == 0 {
		c.JSON(http.StatusConflict, resp)
		return
	}
	log.Infof("HTTP 添加 %d 个价格水平", len(resp.Added))
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLevelRemove(c *gin.Context) {
	v, err := domain.ParsePrice(c.Param("value"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Remove(v); err != nil {
		if errors.Is(err, levels.ErrNotFound) {
			writeError(c, http.StatusNotFound, "level not found")
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	log.Infof("HTTP 删除价格水平 %s", domain.FormatPrice(v))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLevelsClear(c *gin.Context) {
	n := s.store.Len()
	s.store.Clear()
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (s *Server) handleLevelsSave(c *gin.Context) {
	if err := s.store.Save(); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.levels())
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{Levels: s.store.Len()}
	if s.status != nil {
		st := s.status.Status()
		resp.Monitor = &st
	}
	if s.last != nil {
		if t, ok := s.last.LastKnown(); ok {
			resp.LastTick = &t
		}
	}
	c.JSON(http.StatusOK, resp)
}
