package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/catalog/internal/drafts"
)

func TestHealthWithoutInspectorReportsConfiguredQueue(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, "catalog", quietLogger()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "catalog", body.Queue)
	require.Zero(t, body.Pending)
}

func TestClientEnqueuesDelayedReconcileTask(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, ClientConfig{
		Queue:    "catalog",
		MaxRetry: 4,
		Delay:    time.Minute,
	})
	t.Cleanup(func() { _ = client.Close() })

	err := client.EnqueueReconcile(context.Background(), drafts.ReconcileRequest{
		DraftID:     9,
		Code:        "000009",
		PublishedAt: time.Date(2025, 2, 4, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	scheduled, err := mr.ZMembers("asynq:{catalog}:scheduled")
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
}

func TestClientRejectsRequestWithoutCode(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, ClientConfig{})
	t.Cleanup(func() { _ = client.Close() })

	err := client.EnqueueReconcile(context.Background(), drafts.ReconcileRequest{DraftID: 9})
	require.ErrorIs(t, err, ErrInvalidPayload)
}
