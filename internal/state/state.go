package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// State is the full lottery ledger. Every record sits at a deterministically
// derived address; the Accounts map is the authoritative balance book for user
// identities and derived accounts alike.
type State struct {
	Height int64 `json:"height"`

	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // identity -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection

	Counter   *LotteryCounter        `json:"counter,omitempty"`
	Vaults    map[string]*Vault      `json:"vaults"`
	Lotteries map[uint64]*Lottery    `json:"lotteries"`
	Tickets   map[string]*UserTicket `json:"tickets"`
}

// LotteryCounter is the global singleton assigning lottery ids.
type LotteryCounter struct {
	Address      string `json:"address"`
	Bump         uint8  `json:"bump"`
	TotalLottery uint64 `json:"totalLottery"`
}

// Vault is a per-authority custody account. It holds no balance field of its
// own: the authoritative balance is Accounts[Address].
type Vault struct {
	Address   string `json:"address"`
	Bump      uint8  `json:"bump"`
	Authority string `json:"authority"`
}

// Lottery is one lottery instance. Retained forever as an audit record.
type Lottery struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`

	Authority string `json:"authority"`

	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`

	TicketPrice  uint64 `json:"ticketPrice"`
	TotalTickets uint64 `json:"totalTickets"`
	PotAmount    uint64 `json:"potAmount"`

	WinnerTicket uint64 `json:"winnerTicket,omitempty"` // 1-based; meaningful only when WinnerChosen
	WinnerChosen bool   `json:"winnerChosen"`
	Claimed      bool   `json:"claimed"`
}

// UserTicket is the per-(lottery, buyer) record of purchased ticket numbers.
// Numbers are assigned globally from Lottery.TotalTickets, so they are unique
// across the whole lottery.
type UserTicket struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`

	LotteryID   uint64 `json:"lotteryId"`
	LotteryAddr string `json:"lotteryAddr"`
	Buyer       string `json:"buyer"`

	Numbers       []uint64 `json:"numbers"`
	TicketsBought uint64   `json:"ticketsBought"`
}

func NewState() *State {
	return &State{
		Height:      0,
		Accounts:    map[string]uint64{},
		AccountKeys: map[string][]byte{},
		NonceMax:    map[string]uint64{},
		Vaults:      map[string]*Vault{},
		Lotteries:   map[uint64]*Lottery{},
		Tickets:     map[string]*UserTicket{},
	}
}

func (s *State) normalizeMaps() {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Vaults == nil {
		s.Vaults = map[string]*Vault{}
	}
	if s.Lotteries == nil {
		s.Lotteries = map[uint64]*Lottery{}
	}
	if s.Tickets == nil {
		s.Tickets = map[string]*UserTicket{}
	}
}

// Decode restores a snapshot previously produced by Encode.
func Decode(b []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalizeMaps()
	return &st, nil
}

// Encode renders the snapshot stored by the persistence layer.
func (s *State) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.normalizeMaps()
	return &out, nil
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type vaultKV struct {
		Addr  string `json:"addr"`
		Vault *Vault `json:"vault"`
	}
	type lotteryKV struct {
		ID      uint64   `json:"id"`
		Lottery *Lottery `json:"lottery"`
	}
	type ticketKV struct {
		Addr   string      `json:"addr"`
		Ticket *UserTicket `json:"ticket"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	vaults := make([]vaultKV, 0, len(s.Vaults))
	for k, v := range s.Vaults {
		vaults = append(vaults, vaultKV{Addr: k, Vault: v})
	}
	sort.Slice(vaults, func(i, j int) bool { return vaults[i].Addr < vaults[j].Addr })

	lotteries := make([]lotteryKV, 0, len(s.Lotteries))
	for id, l := range s.Lotteries {
		lotteries = append(lotteries, lotteryKV{ID: id, Lottery: l})
	}
	sort.Slice(lotteries, func(i, j int) bool { return lotteries[i].ID < lotteries[j].ID })

	tickets := make([]ticketKV, 0, len(s.Tickets))
	for addr, tk := range s.Tickets {
		tickets = append(tickets, ticketKV{Addr: addr, Ticket: tk})
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Addr < tickets[j].Addr })

	normalized := struct {
		Height      int64           `json:"height"`
		Accounts    []accountKV     `json:"accounts"`
		AccountKeys []accountKeyKV  `json:"accountKeys,omitempty"`
		NonceMax    []nonceKV       `json:"nonceMax,omitempty"`
		Counter     *LotteryCounter `json:"counter,omitempty"`
		Vaults      []vaultKV       `json:"vaults"`
		Lotteries   []lotteryKV     `json:"lotteries"`
		Tickets     []ticketKV      `json:"tickets"`
	}{
		Height:      s.Height,
		Accounts:    accounts,
		AccountKeys: accountKeys,
		NonceMax:    nonces,
		Counter:     s.Counter,
		Vaults:      vaults,
		Lotteries:   lotteries,
		Tickets:     tickets,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// Transfer moves amount between two ledger accounts, all or nothing.
func (s *State) Transfer(from, to string, amount uint64) error {
	if err := s.Debit(from, amount); err != nil {
		return err
	}
	if err := s.Credit(to, amount); err != nil {
		// Undo the debit so a credit overflow cannot destroy value.
		s.Accounts[from] += amount
		return err
	}
	return nil
}

// ---- Lottery lookups ----

// LotteryByID returns the lottery record, or nil.
func (s *State) LotteryByID(id uint64) *Lottery {
	return s.Lotteries[id]
}

// TicketFor returns the buyer's ticket record for a lottery address, or nil.
func (s *State) TicketFor(lotteryAddr, buyer string) *UserTicket {
	for _, tk := range s.Tickets {
		if tk.LotteryAddr == lotteryAddr && tk.Buyer == buyer {
			return tk
		}
	}
	return nil
}

// LotteryIDs returns all allocated lottery ids in ascending order.
func (s *State) LotteryIDs() []uint64 {
	ids := make([]uint64, 0, len(s.Lotteries))
	for id := range s.Lotteries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
