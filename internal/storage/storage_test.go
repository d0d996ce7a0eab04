package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/deepmine/internal/mining"
	"github.com/annel0/deepmine/internal/vec"
	"github.com/annel0/deepmine/internal/world"
	"github.com/annel0/deepmine/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Репозитории должны подключаться к шахте напрямую
var (
	_ ProgressRepo = (*MemoryProgressRepo)(nil)
	_ ProgressRepo = (*RedisProgressRepo)(nil)
	_ ProgressRepo = (*MariaProgressRepo)(nil)
	_ ProgressRepo = (*MongoProgressRepo)(nil)
)

func TestMemoryProgressRepo(t *testing.T) {
	repo := NewMemoryProgressRepo()
	ctx := context.Background()
	progress := mining.Progress{Power: 100, DamageMultiplier: 1.5, ToolLuckBonus: 0.25, WorldRegion: 2}

	t.Run("Load unknown player", func(t *testing.T) {
		p, found, err := repo.Load(ctx, 999)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, mining.Progress{}, p)

		_, err = repo.Get(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, 1, progress))

		p, found, err := repo.Load(ctx, 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, progress, p)
		assert.Equal(t, 1, repo.Count())
	})

	t.Run("Rewards accumulate", func(t *testing.T) {
		require.NoError(t, repo.AddOre(ctx, 1, mining.OreCopper, 1))
		require.NoError(t, repo.AddOre(ctx, 1, mining.OreCopper, 2))
		require.NoError(t, repo.AddCurrency(ctx, 1, 10))

		rec, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, rec.Ores[mining.OreCopper.String()])
		assert.Equal(t, 10, rec.Currency)
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("Save keeps inventory", func(t *testing.T) {
		updated := progress
		updated.Power = 500
		require.NoError(t, repo.Save(ctx, 1, updated))

		rec, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 500.0, rec.Progress.Power)
		assert.Equal(t, 10, rec.Currency)
	})

	t.Run("Get returns a copy", func(t *testing.T) {
		rec, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		rec.Ores["copper"] = 1000

		again, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, again.Ores["copper"])
	})

	t.Run("Rewards for unknown player", func(t *testing.T) {
		err := repo.AddOre(ctx, 42, mining.OreStone, 1)
		assert.True(t, errors.Is(err, ErrNotFound))
		err = repo.AddCurrency(ctx, 42, 2)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Invalid ore amount", func(t *testing.T) {
		assert.Error(t, repo.AddOre(ctx, 1, mining.OreStone, 0))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, repo.Save(cctx, 1, progress), context.Canceled)
	})
}

func TestParseRedisRecord(t *testing.T) {
	fields := map[string]string{
		"progress":   `{"power":7,"damage_multiplier":2,"world_region":1}`,
		"currency":   "12",
		"updated_at": "1700000000",
		"ore:copper": "4",
		"ore:gold":   "1",
	}

	rec, err := parseRedisRecord(5, fields)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.PlayerID)
	assert.Equal(t, 7.0, rec.Progress.Power)
	assert.Equal(t, 1, rec.Progress.WorldRegion)
	assert.Equal(t, 12, rec.Currency)
	assert.Equal(t, map[string]int{"copper": 4, "gold": 1}, rec.Ores)
	assert.Equal(t, int64(1700000000), rec.UpdatedAt.Unix())

	_, err = parseRedisRecord(5, map[string]string{"currency": "lots"})
	assert.Error(t, err)
}

func TestGridStorage(t *testing.T) {
	gs, err := NewGridStorage("")
	require.NoError(t, err)
	defer gs.Close()

	cells, found, err := gs.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cells)

	grid := world.NewGrid()
	require.NoError(t, grid.SetBlock(vec.Vec3{X: 64, Y: -3, Z: 0}, block.StoneBlockID))
	require.NoError(t, grid.SetBlock(vec.Vec3{X: 65, Y: -3, Z: 1}, block.WinBlockID))
	require.NoError(t, grid.SetBlock(vec.Vec3{X: -1, Y: 9, Z: -1}, block.CeilingBlockID))

	allocs, found, err := gs.LoadAllocations()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, allocs)

	slots := []mining.Allocation{
		{PlayerID: 1, RegionID: 0, Offset: mining.RegionOffset{X: 64, Z: 0}},
		{PlayerID: 2, RegionID: 0, Offset: mining.RegionOffset{X: 128, Z: 0}},
	}
	require.NoError(t, gs.SaveSnapshot(grid.Snapshot(), slots))

	meta, ok, err := gs.Meta()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, meta.Cells)
	assert.Equal(t, 2, meta.Allocations)

	allocs, found, err = gs.LoadAllocations()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, slots, allocs)
	assert.Greater(t, meta.Bytes, 0)

	cells, found, err = gs.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, found)
	assert.ElementsMatch(t, grid.Snapshot(), cells)

	restored := world.NewGrid()
	assert.Equal(t, 0, restored.Restore(cells))
	assert.Equal(t, 3, restored.BlockCount())
	id, ok := restored.Block(vec.Vec3{X: 65, Y: -3, Z: 1})
	require.True(t, ok)
	assert.Equal(t, block.WinBlockID, id)

	require.NoError(t, gs.Close())
	require.NoError(t, gs.Close())
	_, _, err = gs.LoadSnapshot()
	assert.ErrorIs(t, err, ErrStorageClosed)
	assert.ErrorIs(t, gs.SaveSnapshot(nil, nil), ErrStorageClosed)
	_, _, err = gs.LoadAllocations()
	assert.ErrorIs(t, err, ErrStorageClosed)
}
