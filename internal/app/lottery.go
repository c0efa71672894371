package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/codec"
	"onchainlottery/internal/pda"
	"onchainlottery/internal/state"
)

const (
	// sessionWindowSecs is the fixed sales window: end_time = start_time + one week.
	sessionWindowSecs uint64 = 604800

	// feePercent is the protocol fee skimmed from the pot at declaration,
	// integer arithmetic, truncating.
	feePercent uint64 = 10

	// storageDeposit is the minimal funding debited from the payer when a
	// derived account is allocated. It sits on the allocated account and is
	// never part of the pot.
	storageDeposit uint64 = 10
)

func vaultInit(st *state.State, msg codec.VaultInitTx) (*abci.ExecTxResult, error) {
	if msg.Payer == "" || msg.Authority == "" {
		return nil, fmt.Errorf("missing payer/authority")
	}
	addr, bump, err := pda.VaultAddress(msg.Authority)
	if err != nil {
		return nil, err
	}
	if st.Vaults[addr] != nil || st.Balance(addr) > 0 {
		return nil, ErrVaultAlreadyInitialized
	}
	if err := st.Transfer(msg.Payer, addr, storageDeposit); err != nil {
		return nil, fmt.Errorf("fund vault storage: %w", err)
	}
	st.Vaults[addr] = &state.Vault{
		Address:   addr,
		Bump:      bump,
		Authority: msg.Authority,
	}
	return okEvent("VaultInitialized", map[string]string{
		"authority": msg.Authority,
		"vault":     addr,
	}), nil
}

func lotteryInitCounter(st *state.State, msg codec.LotteryInitCounterTx) (*abci.ExecTxResult, error) {
	if msg.Payer == "" {
		return nil, fmt.Errorf("missing payer")
	}
	addr, bump, err := pda.CounterAddress()
	if err != nil {
		return nil, err
	}
	// Re-init targets the same derived address; the allocation check rejects
	// it without a dedicated application error.
	if st.Counter != nil {
		return nil, fmt.Errorf("account %s already allocated", addr)
	}
	if err := st.Transfer(msg.Payer, addr, storageDeposit); err != nil {
		return nil, fmt.Errorf("fund counter storage: %w", err)
	}
	st.Counter = &state.LotteryCounter{
		Address:      addr,
		Bump:         bump,
		TotalLottery: 0,
	}
	return okEvent("CounterInitialized", map[string]string{
		"counter": addr,
	}), nil
}

func lotteryCreate(st *state.State, msg codec.LotteryCreateTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Authority == "" {
		return nil, fmt.Errorf("missing authority")
	}
	if msg.TicketPrice == 0 {
		return nil, fmt.Errorf("ticketPrice must be > 0")
	}
	if st.Counter == nil {
		return nil, fmt.Errorf("lottery counter not initialized")
	}

	id := st.Counter.TotalLottery + 1
	addr, bump, err := pda.LotteryAddress(id)
	if err != nil {
		return nil, err
	}
	if st.Lotteries[id] != nil {
		return nil, fmt.Errorf("account %s already allocated", addr)
	}
	endTime, err := addInt64AndU64Checked(nowUnix, sessionWindowSecs, "session end time")
	if err != nil {
		return nil, err
	}
	if err := st.Transfer(msg.Authority, addr, storageDeposit); err != nil {
		return nil, fmt.Errorf("fund lottery storage: %w", err)
	}

	st.Lotteries[id] = &state.Lottery{
		ID:           id,
		Address:      addr,
		Bump:         bump,
		Authority:    msg.Authority,
		StartTime:    nowUnix,
		EndTime:      endTime,
		TicketPrice:  msg.TicketPrice,
		TotalTickets: 0,
		PotAmount:    0,
		WinnerChosen: false,
		Claimed:      false,
	}
	st.Counter.TotalLottery = id

	return okEvent("LotteryCreated", map[string]string{
		"lotteryId":   fmt.Sprintf("%d", id),
		"authority":   msg.Authority,
		"ticketPrice": fmt.Sprintf("%d", msg.TicketPrice),
		"startTime":   fmt.Sprintf("%d", nowUnix),
		"endTime":     fmt.Sprintf("%d", endTime),
	}), nil
}

func lotteryBuy(st *state.State, msg codec.LotteryBuyTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Buyer == "" {
		return nil, fmt.Errorf("missing buyer")
	}
	l := st.LotteryByID(msg.LotteryID)
	if l == nil || l.ID != msg.LotteryID {
		return nil, ErrInvalidLotteryID
	}
	if l.TicketPrice != msg.TicketPrice {
		return nil, ErrUnmatchedTicketPrice
	}
	if nowUnix >= l.EndTime {
		return nil, ErrExpiredLotterySession
	}

	// The supplied ticket record address must match the derivation for
	// (lottery, buyer); never trust it from input.
	ticketAddr, ticketBump, err := pda.TicketAddress(l.Address, msg.Buyer)
	if err != nil {
		return nil, err
	}
	if msg.Ticket != ticketAddr {
		return nil, ErrInvalidUserTicket
	}

	vaultAddr, _, err := pda.VaultAddress(l.Authority)
	if err != nil {
		return nil, err
	}
	if st.Vaults[vaultAddr] == nil {
		return nil, fmt.Errorf("%w: lottery vault not allocated", ErrInvalidVaultPDA)
	}

	rec := st.Tickets[ticketAddr]
	if rec != nil && (rec.Buyer != msg.Buyer || rec.LotteryAddr != l.Address) {
		return nil, ErrInvalidUserTicket
	}
	if rec == nil {
		if err := st.Transfer(msg.Buyer, ticketAddr, storageDeposit); err != nil {
			return nil, fmt.Errorf("fund ticket storage: %w", err)
		}
		rec = &state.UserTicket{
			Address:     ticketAddr,
			Bump:        ticketBump,
			LotteryID:   l.ID,
			LotteryAddr: l.Address,
			Buyer:       msg.Buyer,
		}
		st.Tickets[ticketAddr] = rec
	}

	if err := st.Transfer(msg.Buyer, vaultAddr, l.TicketPrice); err != nil {
		return nil, err
	}

	total, err := addU64Checked(l.TotalTickets, 1, "total tickets")
	if err != nil {
		return nil, err
	}
	pot, err := addU64Checked(l.PotAmount, l.TicketPrice, "pot amount")
	if err != nil {
		return nil, err
	}
	l.TotalTickets = total
	l.PotAmount = pot

	// Ticket numbers are assigned globally from the post-increment tally, so
	// they are unique across all buyers of this lottery.
	rec.Numbers = append(rec.Numbers, total)
	rec.TicketsBought++

	return okEvent("TicketPurchased", map[string]string{
		"lotteryId":    fmt.Sprintf("%d", l.ID),
		"buyer":        msg.Buyer,
		"ticketNumber": fmt.Sprintf("%d", total),
		"price":        fmt.Sprintf("%d", l.TicketPrice),
		"potAmount":    fmt.Sprintf("%d", pot),
	}), nil
}

func lotteryDeclare(st *state.State, msg codec.LotteryDeclareTx, nowUnix int64, blockHash []byte) (*abci.ExecTxResult, error) {
	if msg.Caller == "" {
		return nil, fmt.Errorf("missing caller")
	}
	l := st.LotteryByID(msg.LotteryID)
	if l == nil || l.ID != msg.LotteryID {
		return nil, ErrUnmatchedLotteryID
	}
	// Session must actually be over: now >= end_time.
	if nowUnix < l.EndTime {
		return nil, ErrUnexpiredLotterySession
	}
	if l.WinnerChosen {
		return nil, ErrWinnerAlreadyDeclared
	}
	if l.TotalTickets == 0 {
		return nil, ErrNoTicketsSold
	}

	winner := drawWinningTicket(nowUnix, blockHash, msg.Caller, l.ID, l.TotalTickets)
	l.WinnerTicket = winner
	l.WinnerChosen = true

	fee, feeVault, err := chargeFee(st, l, msg.Caller, msg.Vault)
	if err != nil {
		return nil, err
	}

	res := okEvent("WinnerDeclared", map[string]string{
		"lotteryId":    fmt.Sprintf("%d", l.ID),
		"winnerTicket": fmt.Sprintf("%d", winner),
		"totalTickets": fmt.Sprintf("%d", l.TotalTickets),
	})
	res.Events = append(res.Events, abci.Event{
		Type: "FeeCharged",
		Attributes: []abci.EventAttribute{
			{Key: "lotteryId", Value: fmt.Sprintf("%d", l.ID), Index: true},
			{Key: "fee", Value: fmt.Sprintf("%d", fee), Index: false},
			{Key: "feeVault", Value: feeVault, Index: true},
			{Key: "potAmount", Value: fmt.Sprintf("%d", l.PotAmount), Index: false},
		},
	})
	return res, nil
}

// chargeFee extracts the protocol fee from the lottery's custody vault into
// the declaring caller's vault. The fee-recipient address is verified against
// the derivation for the caller's authority; the lottery vault is re-derived
// from the lottery's own authority and never taken from input.
func chargeFee(st *state.State, l *state.Lottery, caller, suppliedVault string) (uint64, string, error) {
	feeNum, err := mulU64Checked(l.PotAmount, feePercent, "fee")
	if err != nil {
		return 0, "", err
	}
	fee := feeNum / 100

	feeVault, _, err := pda.VaultAddress(caller)
	if err != nil {
		return 0, "", err
	}
	if suppliedVault != feeVault {
		return 0, "", ErrInvalidVaultPDA
	}
	if st.Vaults[feeVault] == nil {
		return 0, "", fmt.Errorf("%w: fee vault not allocated", ErrInvalidVaultPDA)
	}

	lotteryVault, _, err := pda.VaultAddress(l.Authority)
	if err != nil {
		return 0, "", err
	}
	if st.Vaults[lotteryVault] == nil {
		return 0, "", fmt.Errorf("%w: lottery vault not allocated", ErrInvalidVaultPDA)
	}
	if st.Balance(lotteryVault) < fee {
		return 0, "", ErrInsufficientVaultBalance
	}
	if err := st.Transfer(lotteryVault, feeVault, fee); err != nil {
		return 0, "", err
	}
	l.PotAmount -= fee
	return fee, feeVault, nil
}

func lotteryClaim(st *state.State, msg codec.LotteryClaimTx) (*abci.ExecTxResult, error) {
	if msg.Caller == "" {
		return nil, fmt.Errorf("missing caller")
	}
	l := st.LotteryByID(msg.LotteryID)
	if l == nil || l.ID != msg.LotteryID {
		return nil, ErrLotteryIDMismatch
	}
	if !l.WinnerChosen {
		return nil, ErrWinnerNotDeclared
	}
	if l.Claimed {
		return nil, ErrAlreadyClaimed
	}

	ticketAddr, _, err := pda.TicketAddress(l.Address, msg.Caller)
	if err != nil {
		return nil, err
	}
	if msg.Ticket != ticketAddr {
		return nil, ErrInvalidUserTicket
	}
	rec := st.Tickets[ticketAddr]
	if rec == nil || rec.Buyer != msg.Caller || rec.LotteryAddr != l.Address {
		return nil, ErrNotAWinningTicket
	}
	holds := false
	for _, n := range rec.Numbers {
		if n == l.WinnerTicket {
			holds = true
			break
		}
	}
	if !holds {
		return nil, ErrNotAWinningTicket
	}

	lotteryVault, _, err := pda.VaultAddress(l.Authority)
	if err != nil {
		return nil, err
	}
	if st.Vaults[lotteryVault] == nil {
		return nil, fmt.Errorf("%w: lottery vault not allocated", ErrInvalidVaultPDA)
	}
	if st.Balance(lotteryVault) < l.PotAmount {
		return nil, ErrInsufficientVaultBalance
	}
	if err := st.Transfer(lotteryVault, msg.Caller, l.PotAmount); err != nil {
		return nil, err
	}
	l.Claimed = true

	return okEvent("PrizeClaimed", map[string]string{
		"lotteryId":    fmt.Sprintf("%d", l.ID),
		"winner":       msg.Caller,
		"winnerTicket": fmt.Sprintf("%d", l.WinnerTicket),
		"amount":       fmt.Sprintf("%d", l.PotAmount),
	}), nil
}
