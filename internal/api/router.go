package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/collector-series/collectorhub/internal/pipeline"
	"github.com/collector-series/collectorhub/internal/storage"
	"github.com/gin-gonic/gin"
)

const defaultPageSize = 5

type Server struct {
	store *storage.Store
	pipe  *pipeline.Pipeline
}

func NewServer(store *storage.Store, pipe *pipeline.Pipeline) *Server {
	return &Server{store: store, pipe: pipe}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/records", s.listRecords)
		v1.GET("/collections", s.listCollections)
		v1.POST("/collect/:name", s.collect)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listRecords serves the paginated read API. A store failure is an explicit
// error status; an empty page is a normal response with zero items, so "no
// data yet" and "query failed" stay distinguishable.
func (s *Server) listRecords(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}

	opts := storage.ListOptions{
		Collection: c.Query("collection"),
		Source:     c.Query("source"),
		Query:      c.Query("q"),
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}

	items, err := s.store.QueryLatest(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	total, err := s.store.Count(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if items == nil {
		items = []storage.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"items":      items,
			"page":       page,
			"totalPages": totalPages,
			"total":      total,
		},
	})
}

func (s *Server) listCollections(c *gin.Context) {
	collections, err := s.store.Collections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    collections,
	})
}

// collect is the manual "update now" trigger: an immediate extra run subject
// to the same per-adapter mutual exclusion as scheduled ticks.
func (s *Server) collect(c *gin.Context) {
	name := c.Param("name")
	res := s.pipe.Run(c.Request.Context(), name)

	switch {
	case errors.Is(res.Err, pipeline.ErrUnknownSource):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "unknown_source",
			"message": "no such source: " + name,
		})
	case errors.Is(res.Err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "run_in_progress",
			"message": "a run for this source is already in progress",
		})
	case res.Err != nil:
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "run_failed",
			"message": res.Err.Error(),
			"data":    res,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"code":    "ok",
			"message": "success",
			"data":    res,
		})
	}
}
