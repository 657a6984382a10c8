package store

import (
	"context"
	"testing"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLite {
	var s, err = OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContentRoundTrip(t *testing.T) {
	var s = openTestDB(t)
	var ctx = context.Background()

	var owner = uuid.New()
	var id, err = s.StoreContent(ctx, owner, "corrected text", model.Summary{
		Title:           "梯度下降笔记",
		Topic:           "机器学习",
		ContentMarkdown: "# 总结\n\n要点",
		Keywords:        []string{"梯度下降", "优化"},
	}, "knowledge record")
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	var second int64
	second, err = s.StoreContent(ctx, owner, "other", model.Summary{Title: "t", Topic: "t", ContentMarkdown: "c"}, "")
	require.NoError(t, err)
	require.Greater(t, second, id)
}

func TestUpsertTagIdempotent(t *testing.T) {
	var s = openTestDB(t)
	var ctx = context.Background()

	var first, err = s.UpsertTag(ctx, "机器学习")
	require.NoError(t, err)

	var again int64
	again, err = s.UpsertTag(ctx, "机器学习")
	require.NoError(t, err)
	require.Equal(t, first, again)

	var other int64
	other, err = s.UpsertTag(ctx, "优化")
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestAssociateUpsertsConfidence(t *testing.T) {
	var s = openTestDB(t)
	var ctx = context.Background()

	var contentID, err = s.StoreContent(ctx, uuid.New(), "text", model.Summary{Title: "t", Topic: "t", ContentMarkdown: "c"}, "")
	require.NoError(t, err)
	var tagID int64
	tagID, err = s.UpsertTag(ctx, "笔记")
	require.NoError(t, err)

	require.NoError(t, s.Associate(ctx, contentID, tagID, 0.8))
	// Re-associating the same pair updates rather than errors.
	require.NoError(t, s.Associate(ctx, contentID, tagID, 0.9))
}

func TestListExistingTagsLimit(t *testing.T) {
	var s = openTestDB(t)
	var ctx = context.Background()

	for _, name := range []string{"a", "b", "c", "d"} {
		var _, err = s.UpsertTag(ctx, name)
		require.NoError(t, err)
	}

	var names, err = s.ListExistingTags(ctx, 2)
	require.NoError(t, err)
	require.Len(t, names, 2)

	names, err = s.ListExistingTags(ctx, 100)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c", "d"}, names)
}

func TestSetContentPublic(t *testing.T) {
	var s = openTestDB(t)
	var ctx = context.Background()

	var contentID, err = s.StoreContent(ctx, uuid.New(), "text", model.Summary{Title: "t", Topic: "t", ContentMarkdown: "c"}, "")
	require.NoError(t, err)

	require.NoError(t, s.SetContentPublic(ctx, contentID, "公开标题", "描述", time.Now()))
	require.Error(t, s.SetContentPublic(ctx, contentID+100, "t", "d", time.Now()))
}
