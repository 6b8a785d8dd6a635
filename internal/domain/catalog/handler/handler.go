// Package handler exposes the catalog import pipeline over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/export"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/parser"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/search"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/service"
)

// ownerHeader scopes every request; authentication itself lives upstream.
const ownerHeader = "X-Owner-ID"

// CatalogHandler handles catalog import, history, search, and export requests.
type CatalogHandler struct {
	importSvc *service.ImportService
	searchSvc *search.Service
	exportSvc *export.Service
	logger    *slog.Logger
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(importSvc *service.ImportService, searchSvc *search.Service, exportSvc *export.Service, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		importSvc: importSvc,
		searchSvc: searchSvc,
		exportSvc: exportSvc,
		logger:    logger,
	}
}

// RegisterRoutes mounts the catalog endpoints on a router group.
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/catalog/import", h.importCatalog)
	rg.GET("/catalog/import/reports", h.listReports)
	rg.GET("/catalog/search", h.searchCatalog)
	rg.GET("/catalog/export", h.exportCatalog)
}

func (h *CatalogHandler) importCatalog(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file could not be opened"})
		return
	}
	defer file.Close()

	report, err := h.importSvc.Import(c.Request.Context(), ownerID, file)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrWorkbookUnreadable),
			errors.Is(err, parser.ErrNoSheets),
			errors.Is(err, service.ErrNoItems):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("import failed", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *CatalogHandler) listReports(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	reports, err := h.importSvc.History(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list import reports", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *CatalogHandler) searchCatalog(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	query := c.Query("q")
	limit := parseInt(c.Query("limit"), 20)

	matches, err := h.searchSvc.Search(c.Request.Context(), ownerID, query, limit)
	if err != nil {
		h.logger.Error("catalog search failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	type hit struct {
		UniqueKey string  `json:"uniqueKey"`
		Title     string  `json:"title"`
		Volume    string  `json:"volume"`
		ISBN      string  `json:"isbn"`
		Category  string  `json:"category"`
		Publisher string  `json:"publisher"`
		Price     *string `json:"price"`
		Presence  string  `json:"presence"`
		Reprint   bool    `json:"reprint"`
		Rank      int     `json:"rank"`
	}

	hits := make([]hit, 0, len(matches))
	for _, m := range matches {
		hh := hit{
			UniqueKey: m.Record.UniqueKey,
			Title:     m.Record.Title,
			Volume:    m.Record.Volume,
			ISBN:      m.Record.ISBN,
			Category:  m.Record.Category,
			Publisher: m.Record.Publisher,
			Presence:  string(m.Record.Presence),
			Reprint:   m.Record.Reprint,
			Rank:      m.Rank,
		}
		if m.Record.Price != nil {
			p := m.Record.Price.StringFixed(2)
			hh.Price = &p
		}
		hits = append(hits, hh)
	}

	c.JSON(http.StatusOK, gin.H{"total": len(hits), "items": hits})
}

func (h *CatalogHandler) exportCatalog(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="catalog.csv"`)

	if err := h.exportSvc.WriteCSV(c.Request.Context(), ownerID, c.Writer); err != nil {
		h.logger.Error("catalog export failed", slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
	}
}

func (h *CatalogHandler) ownerID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(ownerHeader)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + ownerHeader + " header"})
		return uuid.Nil, false
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + ownerHeader + " header"})
		return uuid.Nil, false
	}
	return ownerID, true
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
