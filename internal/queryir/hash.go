package queryir

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainPlan is the domain prefix for plan fingerprints. The version
// suffix enables future rendering-format migration.
const DomainPlan = "kestrel/plan/v1"

// Fingerprint computes a stable content hash of an operator tree.
// Format: SHA256(domain + 0x00 + canonical rendering). The null byte
// separator prevents domain/data boundary ambiguity.
//
// Because the canonical rendering is independent of parameter IDs and
// names, fingerprints are stable across re-expansion and across
// variable renamings.
func Fingerprint(n Node) string {
	h := sha256.New()
	h.Write([]byte(DomainPlan))
	h.Write([]byte{0x00})
	h.Write([]byte(Render(n)))
	return hex.EncodeToString(h.Sum(nil))
}
