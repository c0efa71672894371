// Package pda derives the deterministic ledger addresses used by the lottery
// program. Every persisted record (vault, counter, lottery, ticket) lives at an
// address computed from fixed seed labels plus contextual keys, together with a
// bump byte that proves the address is valid for exclusive program control.
// Consumers must re-derive and compare before trusting any caller-supplied
// address.
package pda

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// MaxSeeds and MaxSeedLen bound the derivation input, mirroring the
	// substrate's fixed seed-material limit.
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// Seed labels for every derived account class.
const (
	SeedVault   = "vault"
	SeedCounter = "lottery_counter"
	SeedLottery = "lottery"
	SeedTicket  = "ticket"
)

// domainTag namespaces derived addresses to this program.
const domainTag = "lotterychain/pda/v1"

var (
	ErrTooManySeeds = fmt.Errorf("pda: more than %d seeds", MaxSeeds)
	ErrSeedTooLong  = fmt.Errorf("pda: seed exceeds %d bytes", MaxSeedLen)
	ErrNoValidBump  = fmt.Errorf("pda: no valid bump for seeds")
	ErrInvalidBump  = fmt.Errorf("pda: bump does not produce a valid address")
)

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return ErrTooManySeeds
	}
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return ErrSeedTooLong
		}
	}
	return nil
}

func candidate(bump uint8, seeds [][]byte) (string, bool) {
	h := sha256.New()
	h.Write([]byte(domainTag))
	for _, s := range seeds {
		h.Write([]byte{uint8(len(s))})
		h.Write(s)
	}
	h.Write([]byte{bump})
	sum := h.Sum(nil)
	// A candidate whose leading byte is 0xff is reserved for key-bearing
	// addresses and is skipped; the bump search proves the returned address
	// has no such key.
	if sum[0] == 0xff {
		return "", false
	}
	return hex.EncodeToString(sum), true
}

// Derive computes the program-controlled address for the given seeds, searching
// bumps downward from 255. The returned bump is the uniqueness proof callers
// persist alongside the record.
func Derive(seeds ...[]byte) (string, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return "", 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		if addr, ok := candidate(uint8(bump), seeds); ok {
			return addr, uint8(bump), nil
		}
	}
	return "", 0, ErrNoValidBump
}

// DeriveWithBump recomputes the address for a known bump. It fails if the bump
// does not land on a valid candidate, so a stored bump cannot be swapped for a
// different one that aliases another record.
func DeriveWithBump(bump uint8, seeds ...[]byte) (string, error) {
	if err := checkSeeds(seeds); err != nil {
		return "", err
	}
	addr, ok := candidate(bump, seeds)
	if !ok {
		return "", ErrInvalidBump
	}
	return addr, nil
}

// Verify reports whether addr is exactly the canonical derived address for the
// seeds. State-mutating handlers call this on every derived account they
// receive as input.
func Verify(addr string, seeds ...[]byte) bool {
	want, _, err := Derive(seeds...)
	if err != nil {
		return false
	}
	return addr == want
}

// U64LE renders an integer seed in the fixed-width little-endian form used by
// the lottery/lottery-id derivation.
func U64LE(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out
}

// VaultAddress derives the custody vault for an authority.
func VaultAddress(authority string) (string, uint8, error) {
	return Derive([]byte(SeedVault), []byte(authority))
}

// CounterAddress derives the global lottery counter singleton.
func CounterAddress() (string, uint8, error) {
	return Derive([]byte(SeedCounter))
}

// LotteryAddress derives the record address for a lottery id.
func LotteryAddress(id uint64) (string, uint8, error) {
	return Derive([]byte(SeedLottery), U64LE(id))
}

// TicketAddress derives the per-(lottery, buyer) ticket record address. The
// lottery is keyed by its own derived address (decoded to its 32 raw bytes so
// it fits the seed-length limit), not its numeric id.
func TicketAddress(lotteryAddr, buyer string) (string, uint8, error) {
	raw, err := hex.DecodeString(lotteryAddr)
	if err != nil || len(raw) != sha256.Size {
		return "", 0, fmt.Errorf("pda: malformed lottery address %q", lotteryAddr)
	}
	return Derive([]byte(SeedTicket), raw, []byte(buyer))
}
