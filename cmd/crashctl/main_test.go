package main

import (
	"bytes"
	"strconv"
	"testing"

	"crashengine/config"
	"crashengine/crypto"
	"crashengine/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateIsReproducibleWithSeed(t *testing.T) {
	cfg := config.Default().Game
	opts := simOptions{Rounds: 20, Bet: 10, CashAt: 1.5, SideBet: string(game.SideBetUnder2x), Seed: "fixed"}

	a, err := simulate(cfg, opts)
	require.NoError(t, err)
	b, err := simulate(cfg, opts)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 20, a.Played)
	assert.GreaterOrEqual(t, a.MeanCrash, game.MinCrashPoint)
	assert.InDelta(t, cfg.InitialBalance-a.Staked+a.Returned, a.EndBalance, 1e-6)
}

func TestSimulateStopsWhenBroke(t *testing.T) {
	cfg := config.Default().Game
	cfg.InitialBalance = 25

	rep, err := simulate(cfg, simOptions{Rounds: 10, Bet: 10, Seed: "broke"})
	require.NoError(t, err)
	// Without cashing out every bet is lost.
	assert.Equal(t, 2, rep.Played)
	assert.Equal(t, 5.0, rep.EndBalance)
	assert.Zero(t, rep.CashedOut)
}

func TestVerifyCommand(t *testing.T) {
	seed := crypto.NewSeed()
	crash := game.CalculateCrashPoint(seed, "abc", 9, config.Default().Game.Params())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{
		"verify",
		"--server-seed", seed,
		"--hash", crypto.Commit(seed),
		"--client-seed", "abc",
		"--nonce", "9",
		"--crash", strconv.FormatFloat(crash, 'g', -1, 64),
	})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "✅")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{
		"verify",
		"--server-seed", seed,
		"--client-seed", "abc",
		"--nonce", "9",
		"--crash", "999999",
	})
	assert.Error(t, root.Execute())
	assert.Contains(t, out.String(), "crash point does not match")
}
