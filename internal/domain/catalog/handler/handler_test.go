package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/export"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/search"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/service"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*repository.CatalogRecord
	reports []*repository.StoredReport
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*repository.CatalogRecord)}
}

func (m *memoryRepo) ListByOwner(context.Context, uuid.UUID, int) ([]*repository.CatalogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repository.CatalogRecord, 0, len(m.records))
	for _, rec := range m.records {
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

func (m *memoryRepo) InsertBatch(_ context.Context, records []*repository.CatalogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		c := *rec
		m.records[rec.UniqueKey] = &c
	}
	return nil
}

func (m *memoryRepo) UpdateBatch(ctx context.Context, records []*repository.CatalogRecord) error {
	return m.InsertBatch(ctx, records)
}

func (m *memoryRepo) MarkAbsent(_ context.Context, _ uuid.UUID, keys []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if rec, ok := m.records[key]; ok {
			rec.Presence = repository.PresenceAbsent
			rec.UpdatedAt = at
		}
	}
	return nil
}

func (m *memoryRepo) SaveReport(_ context.Context, ownerID uuid.UUID, report json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, &repository.StoredReport{
		ID: uuid.New(), OwnerID: ownerID, Report: report, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memoryRepo) ListReports(_ context.Context, _ uuid.UUID, limit int) ([]*repository.StoredReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repository.StoredReport, 0, limit)
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.reports[i])
	}
	return out, nil
}

func (m *memoryRepo) PruneReports(context.Context, uuid.UUID, int) error { return nil }
func (m *memoryRepo) PruneAllReports(context.Context, int) error         { return nil }

func newTestRouter(repo repository.CatalogRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	importSvc := service.NewImportService(repo, logger, service.DefaultOptions())
	searchSvc := search.NewService(repo, 500)
	exportSvc := export.NewService(repo, 500)
	h := NewCatalogHandler(importSvc, searchSvc, exportSvc, logger)

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func workbookUpload(t *testing.T, rows [][]string) (body *bytes.Buffer, contentType string) {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "ivrea"))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("ivrea", cell, &row))
	}
	wb, err := f.WriteToBuffer()
	require.NoError(t, err)

	body = &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "catalog.xlsx")
	require.NoError(t, err)
	_, err = part.Write(wb.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

var catalogRows = [][]string{
	{"NOVEDADES"},
	{"BERSERK 12", "9789877475005", "12500"},
	{"ONE PIECE 103", "9789877475012", "11900"},
}

func TestCatalogHandler_Import(t *testing.T) {
	ownerID := uuid.New()

	t.Run("uploads a workbook and returns the report", func(t *testing.T) {
		router := newTestRouter(newMemoryRepo())
		body, contentType := workbookUpload(t, catalogRows)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Owner-ID", ownerID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var report service.ImportReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 2, report.NewItems)
		assert.Equal(t, 2, report.ItemsLoaded)
	})

	t.Run("missing owner header is unauthorized", func(t *testing.T) {
		router := newTestRouter(newMemoryRepo())
		body, contentType := workbookUpload(t, catalogRows)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed owner header is rejected", func(t *testing.T) {
		router := newTestRouter(newMemoryRepo())
		body, contentType := workbookUpload(t, catalogRows)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Owner-ID", "not-a-uuid")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file field is a bad request", func(t *testing.T) {
		router := newTestRouter(newMemoryRepo())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", nil)
		req.Header.Set("X-Owner-ID", ownerID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unreadable upload is a bad request", func(t *testing.T) {
		router := newTestRouter(newMemoryRepo())

		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		part, err := mw.CreateFormFile("file", "catalog.xlsx")
		require.NoError(t, err)
		_, err = part.Write([]byte("not a spreadsheet"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-Owner-ID", ownerID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCatalogHandler_Reports(t *testing.T) {
	ownerID := uuid.New()
	repo := newMemoryRepo()
	router := newTestRouter(repo)

	body, contentType := workbookUpload(t, catalogRows)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", ownerID.String())
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/import/reports", nil)
	req.Header.Set("X-Owner-ID", ownerID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reports []*repository.StoredReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Reports, 1)
}

func TestCatalogHandler_Search(t *testing.T) {
	ownerID := uuid.New()
	repo := newMemoryRepo()
	router := newTestRouter(repo)

	body, contentType := workbookUpload(t, catalogRows)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", ownerID.String())
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/search?q=berserk", nil)
	req.Header.Set("X-Owner-ID", ownerID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total int `json:"total"`
		Items []struct {
			UniqueKey string  `json:"uniqueKey"`
			Title     string  `json:"title"`
			Price     *string `json:"price"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "BERSERK", resp.Items[0].Title)
	require.NotNil(t, resp.Items[0].Price)
	assert.Equal(t, "12500.00", *resp.Items[0].Price)
}

func TestCatalogHandler_Export(t *testing.T) {
	ownerID := uuid.New()
	repo := newMemoryRepo()
	router := newTestRouter(repo)

	body, contentType := workbookUpload(t, catalogRows)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", ownerID.String())
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog/export", nil)
	req.Header.Set("X-Owner-ID", ownerID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "catalog.csv")
	assert.Contains(t, w.Body.String(), "unique_key,title,volume")
	assert.Contains(t, w.Body.String(), "BERSERK")
}
