package app

import (
	"crypto/sha256"
	"encoding/binary"
)

// drawWinningTicket derives the winning ticket number from four entropy
// sources fixed at declaration time: the block timestamp, the recent block
// hash, the declaring caller's identity, and the lottery id. The digest's
// first 8 bytes are read little-endian and reduced modulo totalTickets, then
// shifted into the 1-based ticket range.
//
// The modulo reduction is not perfectly uniform when totalTickets does not
// divide 2^64, but the bias is cryptographically negligible for realistic
// ticket counts.
func drawWinningTicket(blockTime int64, blockHash []byte, caller string, lotteryID, totalTickets uint64) uint64 {
	if totalTickets == 0 {
		// Callers guard on NoTicketsSold before drawing.
		return 0
	}

	entropy := make([]byte, 0, 8+len(blockHash)+len(caller)+8)
	entropy = binary.LittleEndian.AppendUint64(entropy, uint64(blockTime))
	entropy = append(entropy, blockHash...)
	entropy = append(entropy, []byte(caller)...)
	entropy = binary.LittleEndian.AppendUint64(entropy, lotteryID)

	digest := sha256.Sum256(entropy)
	r := binary.LittleEndian.Uint64(digest[:8])
	return r%totalTickets + 1
}
