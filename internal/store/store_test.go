package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"onchainlottery/internal/state"
)

func TestLoadStateFreshWhenEmpty(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	st, err := s.LoadState()
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Height)
	require.Empty(t, st.Lotteries)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	st := state.NewState()
	st.Height = 42
	require.NoError(t, st.Credit("alice", 500))
	st.Lotteries[1] = &state.Lottery{ID: 1, Address: "laddr", Authority: "alice", TicketPrice: 100, TotalTickets: 3, PotAmount: 300}

	require.NoError(t, s.SaveState(st))
	require.NoError(t, s.Close())

	// Reopen: the snapshot must survive the process boundary.
	s2, err := Open(dir)
	require.NoError(t, err)
	defer func() { require.NoError(t, s2.Close()) }()

	got, err := s2.LoadState()
	require.NoError(t, err)
	require.EqualValues(t, 42, got.Height)
	require.EqualValues(t, 500, got.Balance("alice"))
	require.Equal(t, st.Lotteries[1], got.Lotteries[1])
	require.Equal(t, st.AppHash(), got.AppHash())
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	st := state.NewState()
	st.Height = 1
	require.NoError(t, s.SaveState(st))

	st.Height = 2
	require.NoError(t, s.SaveState(st))

	got, err := s.LoadState()
	require.NoError(t, err)
	require.EqualValues(t, 2, got.Height)
}
