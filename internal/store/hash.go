package store

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ComputeSignatureHash hashes a symbol's identity: key, kind, container and
// parameters in order. Location changes do NOT affect the hash, so a thread
// moved within a file keeps its hash.
func ComputeSignatureHash(key, kind, container string, params []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "key:%s\n", key)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "container:%s\n", strings.ToLower(container))
	for i, p := range params {
		fmt.Fprintf(h, "param:%d:%s\n", i, strings.ToLower(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ContentHash is the hex sha256 of a file's text.
func ContentHash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}
