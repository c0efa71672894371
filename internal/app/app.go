package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlottery/internal/codec"
	"onchainlottery/internal/state"
	"onchainlottery/internal/store"
)

const (
	AppVersion uint64 = 1
)

// LotteryApp is the ABCI application holding the lottery ledger. Every tx is
// executed against a staged clone of state and committed only on success, so
// a failed operation leaves no partial mutation behind.
type LotteryApp struct {
	*abci.BaseApplication

	db *store.Store

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string) (*LotteryApp, error) {
	db, err := store.Open(filepath.Join(home, "app"))
	if err != nil {
		return nil, err
	}
	st, err := db.LoadState()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a := &LotteryApp{
		BaseApplication: abci.NewBaseApplication(),
		db:              db,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *LotteryApp) Close() error {
	return a.db.Close()
}

func (a *LotteryApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "lotterychain",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *LotteryApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	// Structural validation only; auth and preconditions run at delivery.
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: codeGeneric, Log: err.Error()}, nil
	}
	return &abci.CheckTxResponse{Code: codeOK}, nil
}

func (a *LotteryApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// No special genesis handling; the counter singleton is allocated by tx.
	return &abci.InitChainResponse{}, nil
}

func (a *LotteryApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, req.Time.Unix(), req.Hash)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *LotteryApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Persist after each block. Returning the error halts the node loudly
	// rather than silently diverging from its own app hash.
	if err := a.db.SaveState(a.st); err != nil {
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *LotteryApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /account/<addr>
	// - /counter
	// - /lotteries
	// - /lottery/<id>
	// - /ticket/<addr>
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/lotteries":
		b, _ := json.Marshal(a.st.LotteryIDs())
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case path == "/counter":
		if a.st.Counter == nil {
			return &abci.QueryResponse{Code: codeGeneric, Log: "counter not initialized", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(a.st.Counter)
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": a.st.Balance(addr)})
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/lottery/"):
		raw := strings.TrimPrefix(path, "/lottery/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: codeGeneric, Log: "invalid lottery id", Height: a.st.Height}, nil
		}
		l := a.st.LotteryByID(id)
		if l == nil {
			return &abci.QueryResponse{Code: codeGeneric, Log: "lottery not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(l)
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/ticket/"):
		addr := strings.TrimPrefix(path, "/ticket/")
		tk := a.st.Tickets[addr]
		if tk == nil {
			return &abci.QueryResponse{Code: codeGeneric, Log: "ticket not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(tk)
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	default:
		return &abci.QueryResponse{Code: codeGeneric, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

// deliverTx executes one envelope against a staged clone; the clone replaces
// live state only when the handler succeeds.
func (a *LotteryApp) deliverTx(txBytes []byte, height int64, blockTime int64, blockHash []byte) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: codeGeneric, Log: err.Error()}
	}

	work, err := a.st.Clone()
	if err != nil {
		return &abci.ExecTxResult{Code: codeGeneric, Log: err.Error()}
	}
	work.Height = height

	res, err := routeTx(work, env, blockTime, blockHash)
	if err != nil {
		return &abci.ExecTxResult{Code: txErrorCode(err), Log: err.Error()}
	}
	a.st = work
	return res
}

func routeTx(st *state.State, env codec.TxEnvelope, nowUnix int64, blockHash []byte) (*abci.ExecTxResult, error) {
	switch env.Type {
	case "bank/mint":
		// Unsigned localnet faucet.
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad bank/mint value")
		}
		if msg.To == "" || msg.Amount == 0 {
			return nil, fmt.Errorf("missing to/amount")
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return nil, err
		}
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		}), nil

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad bank/send value")
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return nil, fmt.Errorf("missing from/to/amount")
		}
		if err := requireAccountAuth(st, env, msg.From); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		if err := st.Transfer(msg.From, msg.To, msg.Amount); err != nil {
			return nil, err
		}
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		}), nil

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad auth/register_account value")
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		if existing := st.AccountKeys[msg.Account]; len(existing) != 0 && !bytes.Equal(existing, msg.PubKey) {
			return nil, fmt.Errorf("account %q pubKey mismatch", msg.Account)
		}
		st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		}), nil

	case "vault/init":
		var msg codec.VaultInitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad vault/init value")
		}
		if err := requireAccountAuth(st, env, msg.Payer); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		return vaultInit(st, msg)

	case "lottery/init_counter":
		var msg codec.LotteryInitCounterTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad lottery/init_counter value")
		}
		if err := requireAccountAuth(st, env, msg.Payer); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		return lotteryInitCounter(st, msg)

	case "lottery/create":
		var msg codec.LotteryCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad lottery/create value")
		}
		if err := requireAccountAuth(st, env, msg.Authority); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		return lotteryCreate(st, msg, nowUnix)

	case "lottery/buy":
		var msg codec.LotteryBuyTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad lottery/buy value")
		}
		if err := requireAccountAuth(st, env, msg.Buyer); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		return lotteryBuy(st, msg, nowUnix)

	case "lottery/declare":
		var msg codec.LotteryDeclareTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad lottery/declare value")
		}
		if err := requireAccountAuth(st, env, msg.Caller); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		return lotteryDeclare(st, msg, nowUnix, blockHash)

	case "lottery/claim":
		var msg codec.LotteryClaimTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad lottery/claim value")
		}
		if err := requireAccountAuth(st, env, msg.Caller); err != nil {
			return nil, err
		}
		if err := consumeNonce(st, env.Signer, env.Nonce); err != nil {
			return nil, err
		}
		return lotteryClaim(st, msg)

	default:
		return nil, fmt.Errorf("unknown tx type: %s", env.Type)
	}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   codeOK,
		Events: []abci.Event{ev},
	}
}
