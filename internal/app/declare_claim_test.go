package app

import (
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/pda"
)

func declareTx(t *testing.T, a *LotteryApp, height, now int64, caller string, lotteryID uint64) *abci.ExecTxResult {
	t.Helper()
	vault, _, err := pda.VaultAddress(caller)
	if err != nil {
		t.Fatalf("derive vault: %v", err)
	}
	return a.deliverTx(txBytesSigned(t, "lottery/declare", map[string]any{
		"caller":    caller,
		"lotteryId": lotteryID,
		"vault":     vault,
	}, caller), height, now, testBlockHash)
}

func claimTx(t *testing.T, a *LotteryApp, height, now int64, caller string, lotteryID uint64) *abci.ExecTxResult {
	t.Helper()
	l := a.st.LotteryByID(lotteryID)
	if l == nil {
		t.Fatalf("lottery %d not found", lotteryID)
	}
	ticketAddr, _, err := pda.TicketAddress(l.Address, caller)
	if err != nil {
		t.Fatalf("derive ticket: %v", err)
	}
	return a.deliverTx(txBytesSigned(t, "lottery/claim", map[string]any{
		"caller":    caller,
		"lotteryId": lotteryID,
		"ticket":    ticketAddr,
	}, caller), height, now, testBlockHash)
}

func TestDeclare_BeforeWindowCloseRejected(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
	)
	a, id := setupLottery(t, height, startTime, "alice", 100, "bob")
	mustOk(t, buyTestTicket(t, a, height, 2000, "bob", id, 100))

	res := declareTx(t, a, height, startTime+604800-1, "alice", id)
	if res.Code != codePrecondition {
		t.Fatalf("expected unexpired-session rejection, got code=%d log=%q", res.Code, res.Log)
	}
	if a.st.LotteryByID(id).WinnerChosen {
		t.Fatalf("winner chosen despite rejection")
	}
}

func TestDeclare_NoTicketsSoldRejected(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
	)
	a, id := setupLottery(t, height, startTime, "alice", 100)

	res := declareTx(t, a, height, startTime+604800, "alice", id)
	if res.Code != codePrecondition {
		t.Fatalf("expected no-tickets rejection, got code=%d log=%q", res.Code, res.Log)
	}
}

func TestDeclare_WinnerInRangeAndFeeSkimmed(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
		price     = uint64(100)
	)
	a, id := setupLottery(t, height, startTime, "alice", price, "bob", "carol", "dave")
	for _, buyer := range []string{"bob", "carol", "dave", "bob", "carol"} {
		mustOk(t, buyTestTicket(t, a, height, 2000, buyer, id, price))
	}

	res := mustOk(t, declareTx(t, a, height, startTime+604800, "alice", id))

	l := a.st.LotteryByID(id)
	if !l.WinnerChosen {
		t.Fatalf("expected winnerChosen")
	}
	if l.WinnerTicket < 1 || l.WinnerTicket > 5 {
		t.Fatalf("winner ticket %d out of range [1,5]", l.WinnerTicket)
	}

	// fee = floor(500 * 10 / 100) = 50.
	if l.PotAmount != 450 {
		t.Fatalf("expected pot 450 after fee, got %d", l.PotAmount)
	}
	ev := findEvent(res.Events, "FeeCharged")
	if ev == nil {
		t.Fatalf("expected FeeCharged event")
	}
	if got := attr(ev, "fee"); got != "50" {
		t.Fatalf("expected fee=50, got %q", got)
	}
}

func TestDeclare_SecondDeclareRejectedAndWinnerUnchanged(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
	)
	a, id := setupLottery(t, height, startTime, "alice", 100, "bob")
	mustOk(t, buyTestTicket(t, a, height, 2000, "bob", id, 100))
	mustOk(t, declareTx(t, a, height, startTime+604800, "alice", id))

	winner := a.st.LotteryByID(id).WinnerTicket
	pot := a.st.LotteryByID(id).PotAmount

	res := declareTx(t, a, height, startTime+604800+60, "alice", id)
	if res.Code != codePrecondition {
		t.Fatalf("expected already-declared rejection, got code=%d log=%q", res.Code, res.Log)
	}
	if got := a.st.LotteryByID(id); got.WinnerTicket != winner || got.PotAmount != pot {
		t.Fatalf("second declare mutated lottery: %+v", got)
	}
}

func TestDeclare_SubstitutedFeeVaultRejected(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
	)
	a, id := setupLottery(t, height, startTime, "alice", 100, "bob")
	mustOk(t, buyTestTicket(t, a, height, 2000, "bob", id, 100))

	// bob's vault is a valid PDA, but not the one derived from the caller.
	initTestVault(t, a, height, "bob", "bob")
	bobVault, _, err := pda.VaultAddress("bob")
	if err != nil {
		t.Fatalf("derive vault: %v", err)
	}
	res := a.deliverTx(txBytesSigned(t, "lottery/declare", map[string]any{
		"caller":    "alice",
		"lotteryId": id,
		"vault":     bobVault,
	}, "alice"), height, startTime+604800, testBlockHash)
	if res.Code != codeDerivation {
		t.Fatalf("expected vault-pda rejection, got code=%d log=%q", res.Code, res.Log)
	}
	if a.st.LotteryByID(id).WinnerChosen {
		t.Fatalf("failed declare left winner chosen")
	}
}

func TestDeclare_ByNonAuthorityFeePaidToCallerVault(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
		price     = uint64(100)
	)
	a, id := setupLottery(t, height, startTime, "alice", price, "bob")
	mustOk(t, buyTestTicket(t, a, height, 2000, "bob", id, price))

	// The fee recipient is derived from the declaring caller, not the lottery
	// authority.
	initTestVault(t, a, height, "bob", "bob")
	bobVault, _, err := pda.VaultAddress("bob")
	if err != nil {
		t.Fatalf("derive vault: %v", err)
	}
	before := a.st.Balance(bobVault)

	mustOk(t, declareTx(t, a, height, startTime+604800, "bob", id))

	if got := a.st.Balance(bobVault); got != before+10 {
		t.Fatalf("expected caller vault to receive fee 10, got delta %d", got-before)
	}
}

func TestClaim_WinnerPaidExactlyOnce(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
		price     = uint64(100)
	)
	buyers := []string{"bob", "carol", "dave"}
	a, id := setupLottery(t, height, startTime, "alice", price, buyers...)
	for _, buyer := range buyers {
		mustOk(t, buyTestTicket(t, a, height, 2000, buyer, id, price))
	}
	mustOk(t, declareTx(t, a, height, startTime+604800, "alice", id))

	l := a.st.LotteryByID(id)
	if l.PotAmount != 270 {
		t.Fatalf("expected pot 270 after fee, got %d", l.PotAmount)
	}

	// Find the holder of the winning number.
	var winner string
	for _, buyer := range buyers {
		tk := a.st.TicketFor(l.Address, buyer)
		for _, n := range tk.Numbers {
			if n == l.WinnerTicket {
				winner = buyer
			}
		}
	}
	if winner == "" {
		t.Fatalf("winning ticket %d not held by any buyer", l.WinnerTicket)
	}

	// A non-winner cannot claim.
	for _, buyer := range buyers {
		if buyer == winner {
			continue
		}
		res := claimTx(t, a, height, startTime+604800+60, buyer, id)
		if res.Code != codePrecondition {
			t.Fatalf("expected not-a-winning-ticket rejection for %q, got code=%d log=%q", buyer, res.Code, res.Log)
		}
	}

	before := a.st.Balance(winner)
	mustOk(t, claimTx(t, a, height, startTime+604800+60, winner, id))
	if got := a.st.Balance(winner); got != before+270 {
		t.Fatalf("expected winner to receive 270, got delta %d", got-before)
	}
	if !a.st.LotteryByID(id).Claimed {
		t.Fatalf("expected claimed flag set")
	}

	// Any further claim fails cleanly, including by the winner.
	for _, buyer := range buyers {
		res := claimTx(t, a, height, startTime+604800+120, buyer, id)
		if res.Code != codePrecondition {
			t.Fatalf("expected already-claimed rejection for %q, got code=%d log=%q", buyer, res.Code, res.Log)
		}
	}
	if got := a.st.Balance(winner); got != before+270 {
		t.Fatalf("double payout detected: delta %d", got-before)
	}
}

func TestClaim_BeforeDeclareRejected(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
	)
	a, id := setupLottery(t, height, startTime, "alice", 100, "bob")
	mustOk(t, buyTestTicket(t, a, height, 2000, "bob", id, 100))

	res := claimTx(t, a, height, 3000, "bob", id)
	if res.Code != codePrecondition {
		t.Fatalf("expected winner-not-declared rejection, got code=%d log=%q", res.Code, res.Log)
	}
}

func TestClaim_SubstitutedTicketAddressRejected(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
	)
	a, id := setupLottery(t, height, startTime, "alice", 100, "bob", "mallory")
	mustOk(t, buyTestTicket(t, a, height, 2000, "bob", id, 100))
	mustOk(t, declareTx(t, a, height, startTime+604800, "alice", id))

	l := a.st.LotteryByID(id)
	bobTicket, _, err := pda.TicketAddress(l.Address, "bob")
	if err != nil {
		t.Fatalf("derive ticket: %v", err)
	}
	// mallory presents bob's winning record as her own.
	res := a.deliverTx(txBytesSigned(t, "lottery/claim", map[string]any{
		"caller":    "mallory",
		"lotteryId": id,
		"ticket":    bobTicket,
	}, "mallory"), height, startTime+604800+60, testBlockHash)
	if res.Code != codeDerivation {
		t.Fatalf("expected derivation-class rejection, got code=%d log=%q", res.Code, res.Log)
	}
}

// Full scenario from the protocol walkthrough: three buyers at price 100, the
// pot reaches 300, the fee skims 30, the winner claims 270, and everyone else
// fails afterward.
func TestScenario_ThreeBuyersDeclareClaim(t *testing.T) {
	const (
		height    = int64(1)
		startTime = int64(1000)
		price     = uint64(100)
	)
	buyers := []string{"bob", "carol", "dave"}
	a, id := setupLottery(t, height, startTime, "alice", price, buyers...)

	for _, buyer := range buyers {
		mustOk(t, buyTestTicket(t, a, height, 2000, buyer, id, price))
	}
	l := a.st.LotteryByID(id)
	if l.TotalTickets != 3 || l.PotAmount != 300 {
		t.Fatalf("expected tickets=3 pot=300, got tickets=%d pot=%d", l.TotalTickets, l.PotAmount)
	}

	mustOk(t, declareTx(t, a, height, startTime+604800, "alice", id))
	l = a.st.LotteryByID(id)
	if l.WinnerTicket < 1 || l.WinnerTicket > 3 {
		t.Fatalf("winner ticket %d out of range [1,3]", l.WinnerTicket)
	}
	if l.PotAmount != 270 {
		t.Fatalf("expected pot 270, got %d", l.PotAmount)
	}

	winner := buyers[l.WinnerTicket-1] // each buyer holds exactly one sequential number
	before := a.st.Balance(winner)
	mustOk(t, claimTx(t, a, height, startTime+604800+60, winner, id))
	if got := a.st.Balance(winner); got != before+270 {
		t.Fatalf("expected payout 270, got delta %d", got-before)
	}

	for _, buyer := range buyers {
		if res := claimTx(t, a, height, startTime+604800+120, buyer, id); res.Code == 0 {
			t.Fatalf("expected post-claim claims to fail")
		}
	}
}
