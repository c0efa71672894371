package pda

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveDeterministic(t *testing.T) {
	a1, b1, err := Derive([]byte(SeedVault), []byte("alice"))
	require.NoError(t, err)
	a2, b2, err := Derive([]byte(SeedVault), []byte("alice"))
	require.NoError(t, err)
	require.Equal(t, a1, a2)
	require.Equal(t, b1, b2)
	require.Len(t, a1, 64)
}

func TestDeriveDistinctInputsDistinctAddresses(t *testing.T) {
	seen := map[string]string{}
	for _, who := range []string{"alice", "bob", "carol", "dave"} {
		addr, _, err := VaultAddress(who)
		require.NoError(t, err)
		prev, dup := seen[addr]
		require.Falsef(t, dup, "address collision between %q and %q", who, prev)
		seen[addr] = who
	}

	counterAddr, _, err := CounterAddress()
	require.NoError(t, err)
	require.NotContains(t, seen, counterAddr)

	l1, _, err := LotteryAddress(1)
	require.NoError(t, err)
	l2, _, err := LotteryAddress(2)
	require.NoError(t, err)
	require.NotEqual(t, l1, l2)
}

func TestDeriveWithBumpRoundTrip(t *testing.T) {
	addr, bump, err := LotteryAddress(7)
	require.NoError(t, err)

	got, err := DeriveWithBump(bump, []byte(SeedLottery), U64LE(7))
	require.NoError(t, err)
	require.Equal(t, addr, got)
}

func TestVerify(t *testing.T) {
	addr, _, err := VaultAddress("alice")
	require.NoError(t, err)

	require.True(t, Verify(addr, []byte(SeedVault), []byte("alice")))
	require.False(t, Verify(addr, []byte(SeedVault), []byte("bob")))
	require.False(t, Verify("not-an-address", []byte(SeedVault), []byte("alice")))
}

func TestSeedLimits(t *testing.T) {
	_, _, err := Derive([]byte(strings.Repeat("x", MaxSeedLen+1)))
	require.ErrorIs(t, err, ErrSeedTooLong)

	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, _, err = Derive(seeds...)
	require.ErrorIs(t, err, ErrTooManySeeds)
}

func TestTicketAddressRequiresDerivedLotteryAddress(t *testing.T) {
	lotteryAddr, _, err := LotteryAddress(3)
	require.NoError(t, err)

	addr, _, err := TicketAddress(lotteryAddr, "bob")
	require.NoError(t, err)
	require.Len(t, addr, 64)

	_, _, err = TicketAddress("zz-not-hex", "bob")
	require.Error(t, err)
}
