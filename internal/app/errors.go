package app

import "errors"

// Application errors, grouped by the classes clients need to tell apart:
// precondition violations, derivation/authorization mismatches, and resource
// exhaustion. Allocation conflicts and malformed txs stay on the generic code.
var (
	// Precondition violations.
	ErrInvalidLotteryID        = errors.New("invalid lottery id")
	ErrUnmatchedLotteryID      = errors.New("unmatched lottery id")
	ErrLotteryIDMismatch       = errors.New("lottery id mismatch")
	ErrUnmatchedTicketPrice    = errors.New("unmatched ticket price")
	ErrExpiredLotterySession   = errors.New("lottery session has expired")
	ErrUnexpiredLotterySession = errors.New("lottery session has not expired")
	ErrNoTicketsSold           = errors.New("no tickets sold")
	ErrWinnerAlreadyDeclared   = errors.New("winner already declared")
	ErrWinnerNotDeclared       = errors.New("winner not yet declared")
	ErrNotAWinningTicket       = errors.New("not a winning ticket")
	ErrAlreadyClaimed          = errors.New("prize already claimed")

	// Derivation / authorization mismatches.
	ErrVaultAlreadyInitialized = errors.New("vault pda already initialized")
	ErrInvalidUserTicket       = errors.New("invalid user ticket")
	ErrInvalidVaultPDA         = errors.New("invalid vault pda")

	// Resource exhaustion.
	ErrInsufficientVaultBalance = errors.New("insufficient vault balance")
)

// ABCI result codes per error class.
const (
	codeOK           uint32 = 0
	codeGeneric      uint32 = 1 // malformed tx, allocation conflicts, internal
	codePrecondition uint32 = 2
	codeDerivation   uint32 = 3
	codeFunds        uint32 = 4
)

func txErrorCode(err error) uint32 {
	switch {
	case err == nil:
		return codeOK
	case errors.Is(err, ErrInvalidLotteryID),
		errors.Is(err, ErrUnmatchedLotteryID),
		errors.Is(err, ErrLotteryIDMismatch),
		errors.Is(err, ErrUnmatchedTicketPrice),
		errors.Is(err, ErrExpiredLotterySession),
		errors.Is(err, ErrUnexpiredLotterySession),
		errors.Is(err, ErrNoTicketsSold),
		errors.Is(err, ErrWinnerAlreadyDeclared),
		errors.Is(err, ErrWinnerNotDeclared),
		errors.Is(err, ErrNotAWinningTicket),
		errors.Is(err, ErrAlreadyClaimed):
		return codePrecondition
	case errors.Is(err, ErrVaultAlreadyInitialized),
		errors.Is(err, ErrInvalidUserTicket),
		errors.Is(err, ErrInvalidVaultPDA):
		return codeDerivation
	case errors.Is(err, ErrInsufficientVaultBalance):
		return codeFunds
	default:
		return codeGeneric
	}
}
