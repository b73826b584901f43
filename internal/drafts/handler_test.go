package drafts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/catalog/internal/rbac"
	"github.com/odyssey-erp/catalog/internal/shared"
)

var editorCaps = []string{
	shared.PermProductDraftView,
	shared.PermProductDraftEdit,
	shared.PermProductDraftPublish,
	shared.PermProductDraftDelete,
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
	Status  int               `json:"status"`
}

func newTestRouter(svc *Service, caps ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := &shared.Principal{UserID: 42, Name: "Catalog Editor", Capabilities: caps}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decodeDraft(t *testing.T, raw json.RawMessage) Draft {
	t.Helper()
	var d Draft
	require.NoError(t, json.Unmarshal(raw, &d))
	return d
}

func TestHandlerLifecycle(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingQueue{})
	h := newTestRouter(svc, editorCaps...)

	code, env := do(t, h, http.MethodPost, "/product-drafts", map[string]any{
		"name":         "Dolo 650",
		"manufacturer": "Micro Labs",
		"mrp":          "30.50",
		"sales_price":  28,
		"category_id":  1,
		"molecule_ids": "2, 1",
	})
	require.Equal(t, http.StatusCreated, code)
	created := decodeDraft(t, env.Data)
	require.Equal(t, "Caffeine+Paracetamol", *created.Combination)
	require.Equal(t, shared.Money(3050), created.MRP)

	code, env = do(t, h, http.MethodGet, "/product-drafts/1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, created.ID, decodeDraft(t, env.Data).ID)

	code, _ = do(t, h, http.MethodPost, "/product-drafts/1/unpublish", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, h, http.MethodPost, "/product-drafts/1/publish", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Product draft published successfully", env.Message)

	code, env = do(t, h, http.MethodPost, "/product-drafts/1/publish", nil)
	require.Equal(t, http.StatusOK, code)
	var res PublishResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.True(t, res.AlreadyPublished)
	require.Equal(t, "000001", *res.Draft.Code)

	code, env = do(t, h, http.MethodPut, "/product-drafts/1", map[string]any{"name": "Dolo 650 Plus"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusUnpublished, decodeDraft(t, env.Data).Status)

	code, _ = do(t, h, http.MethodDelete, "/product-drafts/1", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodGet, "/product-drafts/1", nil)
	require.Equal(t, http.StatusNotFound, code)
	code, env = do(t, h, http.MethodGet, "/product-drafts/1?trashed=true", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, decodeDraft(t, env.Data).Trashed())
	code, _ = do(t, h, http.MethodGet, "/product-drafts/1?trashed=yes", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodPost, "/product-drafts/1/restore", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodDelete, "/product-drafts/1/force", nil)
	require.Equal(t, http.StatusForbidden, code)
}

func TestHandlerValidationErrors(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingQueue{})
	h := newTestRouter(svc, editorCaps...)

	code, env := do(t, h, http.MethodPost, "/product-drafts", map[string]any{
		"name":         "Dolo 650",
		"manufacturer": "Micro Labs",
		"mrp":          10,
		"sales_price":  12,
		"category_id":  1,
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Errors, "sales_price")

	code, env = do(t, h, http.MethodPost, "/product-drafts", map[string]any{
		"name":         "Dolo 650",
		"manufacturer": "Micro Labs",
		"mrp":          10,
		"sales_price":  9,
		"category_id":  1,
		"molecule_ids": []any{1, 3},
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Errors, "molecule_ids")

	code, _ = do(t, h, http.MethodPost, "/product-drafts", map[string]any{"molecule_ids": []any{"abc"}})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodPut, "/product-drafts/77", map[string]any{"name": "Nope"})
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodGet, "/product-drafts/abc", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodGet, "/product-drafts/status/archived", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHandlerListings(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingQueue{})
	ids := seedDrafts(t, svc, 3)
	_, err := svc.Publish(asUser(), ids[0])
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(asUser(), ids[2]))
	h := newTestRouter(svc, shared.PermProductDraftView)

	code, env := do(t, h, http.MethodGet, "/product-drafts?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	var page Page
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, 2, page.Pagination.Total)

	code, env = do(t, h, http.MethodGet, "/product-drafts/status/published", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)

	code, env = do(t, h, http.MethodGet, "/product-drafts/trashed", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, ids[2], page.Items[0].ID)

	code, _ = do(t, h, http.MethodPost, "/product-drafts/1/publish", nil)
	require.Equal(t, http.StatusForbidden, code)
}

func TestHandlerBulk(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingQueue{})
	ids := seedDrafts(t, svc, 2)
	h := newTestRouter(svc, editorCaps...)

	code, env := do(t, h, http.MethodPost, "/product-drafts/bulk-publish", map[string]any{"ids": ids})
	require.Equal(t, http.StatusOK, code)
	var res BulkResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Equal(t, ids, res.Succeeded)
	require.Empty(t, res.Failed)

	code, env = do(t, h, http.MethodPost, "/product-drafts/bulk-delete", map[string]any{"ids": []int64{ids[0], 404}})
	require.Equal(t, http.StatusNotFound, code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Empty(t, res.Succeeded)
	require.Equal(t, []int64{ids[0], 404}, res.Failed)

	code, env = do(t, h, http.MethodPost, "/product-drafts/bulk-restore", map[string]any{"ids": []int64{}})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Errors, "ids")
}

func TestHandlerForceDeleteWithCapability(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingQueue{})
	ids := seedDrafts(t, svc, 1)
	h := newTestRouter(svc, append(editorCaps, shared.PermProductDraftForceDelete)...)

	code, _ := do(t, h, http.MethodDelete, "/product-drafts/1/force", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotContains(t, store.drafts, ids[0])
}
