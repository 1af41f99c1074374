package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeContentHash returns the full hex-encoded SHA-256 digest of
// content alone. This is the chunk's content_hash field: the digest of
// the exact substring occupying [start_byte, end_byte).
func ComputeContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ComputeChunkID returns the stable chunk id: the first 16 hex
// characters of sha256(file_path ‖ 0x00 ‖ content).
//
// Salting with the path (rather than hashing content alone) means
// identical content at two different paths gets distinct ids, which
// the graph's chunk node id (`path:start-end`) and node resolution's
// file/symbol/chunk disambiguation both rely on.
func ComputeChunkID(filePath, content string) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte{0})
	h.Write([]byte(content))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8]) // 8 bytes = 16 hex chars
}

// ComputeSymbolID returns the stable symbol id: `file_path:name:start_line`.
func ComputeSymbolID(filePath, name string, startLine int) string {
	return filePath + ":" + name + ":" + itoa(startLine)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
