// Package signature verifies and produces provider request signatures.
package signature

import (
	"fmt"
	"sort"
	"strings"
)

// Verifier checks the signature carried inside a provider parameter map.
type Verifier interface {
	Verify(params map[string]string) error
}

// InvalidSignatureError is returned for every verification failure.
type InvalidSignatureError struct {
	Provider string
	Reason   string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("signature: invalid %s signature: %s", e.Provider, e.Reason)
}

func invalid(provider, format string, args ...interface{}) error {
	return &InvalidSignatureError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}

// canonical joins non-empty params as k=v pairs sorted by key, skipping
// the excluded keys.
func canonical(params map[string]string, exclude ...string) string {
	keys := make([]string, 0, len(params))
outer:
	for k, v := range params {
		if v == "" {
			continue
		}
		for _, ex := range exclude {
			if k == ex {
				continue outer
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
