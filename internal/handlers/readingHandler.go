package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"guia_service/internal/readings"
)

type ReadingHandler struct {
	readings *readings.Service
}

func NewReadingHandler(r *readings.Service) *ReadingHandler {
	return &ReadingHandler{readings: r}
}

func (h *ReadingHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": readings.Tools()})
}

func (h *ReadingHandler) CreateReading(c *gin.Context) {
	var req ReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Tool == "" {
		respondError(c, fmt.Errorf("%w: tool is required", errInvalidRequest))
		return
	}

	res, err := h.readings.Generate(c.Request.Context(), c.GetString(ctxUID), req.Tool, req.Input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReadingHandler) ListReadings(c *gin.Context) {
	list, err := h.readings.List(c.Request.Context(), c.GetString(ctxUID), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": list})
}

func (h *ReadingHandler) GetReading(c *gin.Context) {
	r, err := h.readings.Get(c.Request.Context(), c.GetString(ctxUID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type ReadingRequest struct {
	Tool  string            `json:"tool"`
	Input map[string]string `json:"input"`
}
