package memsession

import (
	"io"
)

const (
	// IDLength is the number of characters in a session id.
	IDLength = 32

	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// Bytes at or above this value are discarded so that every symbol of
	// the 62-character alphabet is equally likely (248 = 4 * 62).
	idRejectAbove = 256 - 256%len(idAlphabet)
)

// generateID reads entropy from src and maps it onto the id alphabet.
func generateID(src io.Reader) (string, error) {
	ptr := idBufferPool.Get().(*[]byte)
	b := *ptr
	defer func() {
		clear(b)
		idBufferPool.Put(ptr)
	}()

	var out [IDLength]byte
	n := 0
	for n < IDLength {
		if _, err := io.ReadFull(src, b); err != nil {
			return "", err
		}
		for _, c := range b {
			if int(c) >= idRejectAbove {
				continue
			}
			out[n] = idAlphabet[int(c)%len(idAlphabet)]
			n++
			if n == IDLength {
				break
			}
		}
	}
	return string(out[:]), nil
}

// validIDChars is a lookup table for the id alphabet.
var validIDChars = [256]bool{}

func init() {
	for i := 0; i < len(idAlphabet); i++ {
		validIDChars[idAlphabet[i]] = true
	}
}

func isValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < IDLength; i++ {
		if !validIDChars[id[i]] {
			return false
		}
	}
	return true
}
