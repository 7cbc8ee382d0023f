package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoretto/tally/internal/common"
	"github.com/nmoretto/tally/internal/model"
)

func TestMerchantRoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	record := &model.MerchantRecord{
		Name:          "starbucks",
		CategoryLabel: "Meals & Entertainment",
		Embedding:     []float64{0.1, 0.2, 0.3},
		TimesSeen:     3,
		OverrideCount: 1,
		LastUpdated:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveMerchant(ctx, record))

	got, err := store.GetMerchant(ctx, "starbucks")
	require.NoError(t, err)
	assert.Equal(t, record.Name, got.Name)
	assert.Equal(t, record.CategoryLabel, got.CategoryLabel)
	assert.Equal(t, record.Embedding, got.Embedding)
	assert.Equal(t, record.TimesSeen, got.TimesSeen)
	assert.Equal(t, record.OverrideCount, got.OverrideCount)
}

func TestMerchantNilEmbedding(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMerchant(ctx, &model.MerchantRecord{
		Name:      "cash withdrawal",
		TimesSeen: 1,
	}))

	got, err := store.GetMerchant(ctx, "cash withdrawal")
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
}

func TestGetMerchantNotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetMerchant(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveMerchantUpsert(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMerchant(ctx, &model.MerchantRecord{
		Name:          "uber",
		CategoryLabel: "Travel",
		TimesSeen:     1,
	}))
	require.NoError(t, store.SaveMerchant(ctx, &model.MerchantRecord{
		Name:          "uber",
		CategoryLabel: "Travel",
		TimesSeen:     2,
		OverrideCount: 1,
	}))

	got, err := store.GetMerchant(ctx, "uber")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TimesSeen)
	assert.Equal(t, 1, got.OverrideCount)

	all, err := store.GetAllMerchants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetAllMerchantsOrdered(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for _, name := range []string{"zoom", "aws", "lyft"} {
		require.NoError(t, store.SaveMerchant(ctx, &model.MerchantRecord{Name: name, TimesSeen: 1}))
	}

	all, err := store.GetAllMerchants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "aws", all[0].Name)
	assert.Equal(t, "zoom", all[2].Name)
}

func TestSaveMerchantValidation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	assert.Error(t, store.SaveMerchant(ctx, nil))
	assert.Error(t, store.SaveMerchant(ctx, &model.MerchantRecord{Name: "   "}))
	assert.Error(t, store.SaveMerchant(ctx, &model.MerchantRecord{Name: "x", TimesSeen: -1}))
}
