package app

import "onchainlottery/internal/state"

// Read-side accessors backing the HTTP gateway. All return copies taken under
// the app lock so callers never alias live state.

func (a *LotteryApp) Height() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.Height
}

func (a *LotteryApp) AccountBalance(addr string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.Balance(addr)
}

func (a *LotteryApp) LotteryIDs() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.LotteryIDs()
}

func (a *LotteryApp) LotteryByID(id uint64) (state.Lottery, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.st.LotteryByID(id)
	if l == nil {
		return state.Lottery{}, false
	}
	return *l, true
}

func (a *LotteryApp) TicketFor(lotteryID uint64, buyer string) (state.UserTicket, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.st.LotteryByID(lotteryID)
	if l == nil {
		return state.UserTicket{}, false
	}
	tk := a.st.TicketFor(l.Address, buyer)
	if tk == nil {
		return state.UserTicket{}, false
	}
	out := *tk
	out.Numbers = append([]uint64(nil), tk.Numbers...)
	return out, true
}
