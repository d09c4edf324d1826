package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"guia_service/internal/store"
)

const (
	maxJournalContent = 10000
	maxJournalTags    = 10
)

// JournalHandler serves the free diary and ritual log. Neither costs points.
type JournalHandler struct {
	store store.Store
}

func NewJournalHandler(s store.Store) *JournalHandler {
	return &JournalHandler{store: s}
}

func (r *JournalRequest) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" && strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: title or content is required", errInvalidRequest)
	}
	if utf8.RuneCountInString(r.Content) > maxJournalContent {
		return fmt.Errorf("%w: content is too long", errInvalidRequest)
	}
	if len(r.Tags) > maxJournalTags {
		return fmt.Errorf("%w: at most %d tags", errInvalidRequest, maxJournalTags)
	}
	return nil
}

func (h *JournalHandler) CreateEntry(c *gin.Context) {
	var req JournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	entry := &store.JournalEntry{Title: req.Title, Content: req.Content, Mood: req.Mood, Tags: req.Tags}
	if err := h.store.SaveJournalEntry(c.Request.Context(), c.GetString(ctxUID), entry); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *JournalHandler) ListEntries(c *gin.Context) {
	entries, err := h.store.ListJournalEntries(c.Request.Context(), c.GetString(ctxUID), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *JournalHandler) GetEntry(c *gin.Context) {
	entry, err := h.store.GetJournalEntry(c.Request.Context(), c.GetString(ctxUID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *JournalHandler) UpdateEntry(c *gin.Context) {
	uid := c.GetString(ctxUID)
	entry, err := h.store.GetJournalEntry(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req JournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	entry.Title = req.Title
	entry.Content = req.Content
	entry.Mood = req.Mood
	entry.Tags = req.Tags
	if err := h.store.SaveJournalEntry(c.Request.Context(), uid, entry); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *JournalHandler) DeleteEntry(c *gin.Context) {
	if err := h.store.DeleteJournalEntry(c.Request.Context(), c.GetString(ctxUID), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *JournalHandler) CreateRitual(c *gin.Context) {
	var req RitualRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respondError(c, fmt.Errorf("%w: name is required", errInvalidRequest))
		return
	}

	ritual := &store.Ritual{
		Name:        strings.TrimSpace(req.Name),
		Intention:   req.Intention,
		Notes:       req.Notes,
		CompletedAt: req.CompletedAt,
	}
	if ritual.CompletedAt.After(time.Now().Add(time.Minute)) {
		respondError(c, fmt.Errorf("%w: completedAt is in the future", errInvalidRequest))
		return
	}
	if err := h.store.SaveRitual(c.Request.Context(), c.GetString(ctxUID), ritual); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ritual)
}

func (h *JournalHandler) ListRituals(c *gin.Context) {
	rituals, err := h.store.ListRituals(c.Request.Context(), c.GetString(ctxUID), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rituals": rituals})
}

type JournalRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Mood    string   `json:"mood"`
	Tags    []string `json:"tags"`
}

type RitualRequest struct {
	Name        string    `json:"name"`
	Intention   string    `json:"intention"`
	Notes       string    `json:"notes"`
	CompletedAt time.Time `json:"completedAt"`
}
