// internal/alias/resolver.go
package alias

import (
	"strings"
	"sync"
)

// Canonicalize normalizes any transport identifier to the +digits form:
// transport suffixes (everything from '@' on) are stripped, then every
// non-digit character, then a leading '+' is forced. An input with no
// digits canonicalizes to the empty string.
func Canonicalize(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		id = id[:i]
	}
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

// keyForms returns the +prefixed and bare-digit lookup keys for an id,
// so lookups succeed no matter which form the transport reports.
func keyForms(id string) []string {
	c := Canonicalize(id)
	if c == "" {
		return nil
	}
	return []string{c, c[1:]}
}

// Resolver maps transport pseudo-identifiers to canonical phones and
// back. Mappings are append/overwrite only, never deleted.
type Resolver struct {
	mu           sync.RWMutex
	aliasToPhone map[string]string
	phoneToAlias map[string]string
}

func NewResolver() *Resolver {
	return &Resolver{
		aliasToPhone: make(map[string]string),
		phoneToAlias: make(map[string]string),
	}
}

// Register stores alias -> canonical in both directions. Re-registering
// the identical pair is a no-op; a new canonical for an existing alias
// is last-write-wins.
func (r *Resolver) Register(aliasID, canonical string) {
	a := Canonicalize(aliasID)
	p := Canonicalize(canonical)
	if a == "" || p == "" || a == p {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keyForms(a) {
		r.aliasToPhone[k] = p
	}
	for _, k := range keyForms(p) {
		r.phoneToAlias[k] = a
	}
}

// Resolve canonicalizes id and follows the alias table. An unregistered
// id comes back in canonical form unchanged (assumed already canonical).
func (r *Resolver) Resolve(id string) string {
	c := Canonicalize(id)
	if c == "" {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range keyForms(c) {
		if p, ok := r.aliasToPhone[k]; ok {
			return p
		}
	}
	return c
}

// AliasFor reports the registered transport alias for a canonical phone.
func (r *Resolver) AliasFor(canonical string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range keyForms(canonical) {
		if a, ok := r.phoneToAlias[k]; ok {
			return a, true
		}
	}
	return "", false
}
