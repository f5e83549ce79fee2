package pebble_service

import (
	"testing"
	"time"
	"wave-portal-client/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestService(t *testing.T, dir string) *PebbleService {
	t.Helper()
	ps := NewPebbleService(&Config{DBPath: dir})
	require.NoError(t, ps.Initialize())
	return ps
}

func TestWavesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1650000000, 0).UTC()
	later := models.MessageRecord{Sender: "0xB", SentAt: base.Add(time.Minute), Text: "second", Source: models.RecordSourceEvent, TxHash: "0xabc"}
	earlier := models.MessageRecord{Sender: "0xA", SentAt: base, Text: "first", Source: models.RecordSourceBulkRead}

	ps := openTestService(t, dir)
	require.NoError(t, ps.SaveWaves([]models.MessageRecord{later, earlier}))
	require.NoError(t, ps.SaveWaves([]models.MessageRecord{earlier}))
	require.NoError(t, ps.SaveTotalCount(2))
	require.NoError(t, ps.Close())

	ps = openTestService(t, dir)
	defer ps.Close()

	waves, err := ps.LoadWaves()
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, "first", waves[0].Text)
	assert.Equal(t, "second", waves[1].Text)
	assert.Equal(t, "0xabc", waves[1].TxHash)
	assert.Equal(t, models.RecordSourceCache, waves[0].Source)

	known, err := ps.IsKnownWave(earlier.Key())
	require.NoError(t, err)
	assert.True(t, known)

	count, err := ps.LoadTotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestTotalCountIsHighWaterMark(t *testing.T) {
	ps := openTestService(t, t.TempDir())
	defer ps.Close()

	count, err := ps.LoadTotalCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, ps.SaveTotalCount(7))
	require.NoError(t, ps.SaveTotalCount(3))

	count, err = ps.LoadTotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), count)
}

func TestBindContractResetsForeignCache(t *testing.T) {
	dir := t.TempDir()
	rec := models.MessageRecord{Sender: "0xA", SentAt: time.Unix(1, 0), Text: "gm"}

	ps := openTestService(t, dir)
	require.NoError(t, ps.BindContract("0xa86a", "0x83b751F54a56EFcB8bB54E69e40aC414080F5CDb"))
	require.NoError(t, ps.SaveWaves([]models.MessageRecord{rec}))
	require.NoError(t, ps.SaveTotalCount(5))
	require.NoError(t, ps.Close())

	// 同一个合约（地址大小写不同）保留缓存
	ps = openTestService(t, dir)
	require.NoError(t, ps.BindContract("0xA86A", "0x83b751f54a56efcb8bb54e69e40ac414080f5cdb"))
	known, err := ps.IsKnownWave(rec.Key())
	require.NoError(t, err)
	assert.True(t, known)

	// 换了合约，旧留言和总数都清掉
	require.NoError(t, ps.BindContract("0xa86a", "0x2222222222222222222222222222222222222222"))
	waves, err := ps.LoadWaves()
	require.NoError(t, err)
	assert.Empty(t, waves)
	known, err = ps.IsKnownWave(rec.Key())
	require.NoError(t, err)
	assert.False(t, known)
	count, err := ps.LoadTotalCount()
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, ps.Close())

	ps = openTestService(t, dir)
	defer ps.Close()
	require.NoError(t, ps.BindContract("0xa86a", "0x2222222222222222222222222222222222222222"))
	require.NoError(t, ps.SaveTotalCount(1))
	count, err = ps.LoadTotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
