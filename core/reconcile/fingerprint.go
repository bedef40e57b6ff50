package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Fingerprint is a stable identity of a plan's changes. Two plans with the
// same changes in the same order share a fingerprint.
func (p *Plan) Fingerprint() string {
	h := sha256.New()
	if p != nil {
		for _, c := range p.Changes {
			write := func(parts ...string) {
				for _, part := range parts {
					h.Write([]byte(part))
					h.Write([]byte{0})
				}
			}
			write(string(c.Kind), c.Name, c.Action.String(), strconv.Itoa(len(c.Attributes)))
			for _, a := range c.Attributes {
				write(a.Name, a.From, a.To)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
