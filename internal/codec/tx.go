package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; this node uses JSON-encoded
// envelopes routed by Type.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Tx auth:
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer identity.
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

// BankMintTx is the unsigned localnet faucet.
type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth ----

// AuthRegisterAccountTx registers an identity's pubkey for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Vault ----

// VaultInitTx allocates the custody vault derived from ("vault", authority).
type VaultInitTx struct {
	Payer     string `json:"payer"`
	Authority string `json:"authority"`
}

// ---- Lottery ----

// LotteryInitCounterTx allocates the global lottery counter singleton.
type LotteryInitCounterTx struct {
	Payer string `json:"payer"`
}

type LotteryCreateTx struct {
	Authority   string `json:"authority"`
	TicketPrice uint64 `json:"ticketPrice"`
}

// LotteryBuyTx purchases one ticket. Ticket is the caller-supplied derived
// address of the per-(lottery, buyer) record; the handler re-derives and
// compares before writing to it.
type LotteryBuyTx struct {
	Buyer       string `json:"buyer"`
	LotteryID   uint64 `json:"lotteryId"`
	TicketPrice uint64 `json:"ticketPrice"`
	Ticket      string `json:"ticket"`
	TicketBump  uint8  `json:"ticketBump"`
}

// LotteryDeclareTx closes the draw. Vault is the caller-supplied fee-recipient
// vault address, verified against the derivation for the declaring caller.
type LotteryDeclareTx struct {
	Caller    string `json:"caller"`
	LotteryID uint64 `json:"lotteryId"`
	Vault     string `json:"vault"`
}

// LotteryClaimTx pays the remaining pot to the winning ticket holder.
type LotteryClaimTx struct {
	Caller    string `json:"caller"`
	LotteryID uint64 `json:"lotteryId"`
	Ticket    string `json:"ticket"`
}
