package drafts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedDrafts(t *testing.T, svc *Service, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		in := validInput()
		in.MoleculeIDs = nil
		d, err := svc.Create(asUser(), in)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	return ids
}

func TestBulkPublishAll(t *testing.T) {
	queue := &recordingQueue{}
	svc := newTestService(newMemoryStore(), queue)
	ids := seedDrafts(t, svc, 3)
	_, err := svc.Publish(asUser(), ids[1])
	require.NoError(t, err)

	res, err := svc.BulkPublish(asUser(), []int64{ids[2], ids[0], ids[1], ids[0]})
	require.NoError(t, err)
	require.Equal(t, ids, res.Succeeded)
	require.Empty(t, res.Failed)
	require.Equal(t, 3, queue.count())

	for _, id := range ids {
		d, err := svc.Get(context.Background(), id, false)
		require.NoError(t, err)
		require.Equal(t, StatusPublished, d.Status)
	}
}

func TestBulkPublishRollsBackOnMissingDraft(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingQueue{})
	ids := seedDrafts(t, svc, 2)

	res, err := svc.BulkPublish(asUser(), []int64{ids[0], ids[1], 999})
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, res.Succeeded)
	require.Equal(t, []int64{ids[0], ids[1], 999}, res.Failed)

	for _, id := range ids {
		d, err := svc.Get(context.Background(), id, false)
		require.NoError(t, err)
		require.Equal(t, StatusDraft, d.Status)
		require.Nil(t, d.Code)
	}
}

func TestBulkDeleteAndRestore(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingQueue{})
	ids := seedDrafts(t, svc, 3)

	res, err := svc.BulkDelete(asUser(), ids[:2])
	require.NoError(t, err)
	require.Equal(t, ids[:2], res.Succeeded)

	page, err := svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	// ids[0] is already trashed, so ids[2] has to stay live.
	res, err = svc.BulkDelete(asUser(), []int64{ids[2], ids[0]})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, []int64{ids[0], ids[2]}, res.Failed)
	page, err = svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	res, err = svc.BulkRestore(asUser(), ids[:2])
	require.NoError(t, err)
	require.Equal(t, ids[:2], res.Succeeded)
	page, err = svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
}

func TestBulkRejectsEmptyBatch(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingQueue{})

	res, err := svc.BulkRestore(asUser(), nil)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrEmptyBatch)
	require.Empty(t, res.Succeeded)
	require.Empty(t, res.Failed)

	_, err = svc.BulkDelete(asUser(), []int64{0})
	require.ErrorIs(t, err, ErrValidation)
}
