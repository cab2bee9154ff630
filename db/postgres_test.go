package db

import (
	"context"
	"os"
	"testing"
	"time"

	"crashengine/game"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive(t *testing.T) {
	_ = godotenv.Load("../.env")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	archive, err := NewArchive(ctx, databaseURL)
	require.NoError(t, err)
	defer archive.Close()

	require.NoError(t, archive.HealthCheck(ctx))

	id := "test-seed-" + time.Now().Format("150405.000000")
	_, _ = archive.pool.Exec(ctx, "DELETE FROM round_history WHERE round_id = $1", id)
	defer archive.pool.Exec(ctx, "DELETE FROM round_history WHERE round_id = $1", id)

	payout := 150.0
	res := game.RoundResult{
		Entry: game.HistoryEntry{
			ID:              id,
			CrashMultiplier: 1.96,
			Fairness: game.FairnessData{
				ServerSeed:     "test-seed",
				ServerSeedHash: "hash",
				ClientSeed:     "client",
				Nonce:          7,
			},
			EndedAt: time.Now().UTC().Truncate(time.Microsecond),
		},
		MainBet:    100,
		SideBet:    game.SideBetUnder2x,
		SideWager:  20,
		CashedOut:  true,
		Payout:     &payout,
		Settlement: game.Settlement{MainPayout: 150, SideBetWon: true, SideBetPayout: 50, Total: 200},
		Balance:    5080,
	}

	t.Run("Record", func(t *testing.T) {
		require.NoError(t, archive.Record(ctx, res))
		// Same round again is ignored.
		require.NoError(t, archive.Record(ctx, res))
	})

	t.Run("GetRound", func(t *testing.T) {
		rec, err := archive.GetRound(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, 1.96, rec.CrashMultiplier)
		assert.Equal(t, uint64(7), rec.Fairness.Nonce)
		assert.Equal(t, "UNDER_2X", rec.SideBet)
		require.NotNil(t, rec.Payout)
		assert.Equal(t, 150.0, *rec.Payout)
		assert.Equal(t, res.Settlement, rec.Settlement)
		assert.True(t, res.Entry.EndedAt.Equal(rec.EndedAt))
	})

	t.Run("GetRoundMissing", func(t *testing.T) {
		rec, err := archive.GetRound(ctx, "no-such-round")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("GetRecent", func(t *testing.T) {
		recs, err := archive.GetRecent(ctx, 5)
		require.NoError(t, err)
		assert.NotEmpty(t, recs)
		assert.LessOrEqual(t, len(recs), 5)
	})
}
