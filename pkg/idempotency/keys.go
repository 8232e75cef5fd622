// Package idempotency derives replay keys for create requests and remembers
// which chart each key produced.
package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	KeyVersion = "v1"

	MaxScopeLen = 32
	MaxKeyLen   = 256

	MaxParts = 32
	MaxBytes = 32 * 1024 // input cap for hashing
)

var (
	ErrInvalidKey   = errors.New("idempotency: invalid key")
	ErrInputTooBig  = errors.New("idempotency: input too big")
	ErrInvalidScope = errors.New("idempotency: invalid scope")
)

// KeyParts is the parsed form of "v1:<scope>:<sha256hex>".
type KeyParts struct {
	Version string `json:"version"`
	Scope   string `json:"scope"`
	Hash    string `json:"hash"`
}

// BuildKey hashes the ordered parts under scope. Equal parts give equal keys
// regardless of map iteration order.
func BuildKey(scope string, parts ...any) (string, error) {
	scope, err := normalizeScope(scope)
	if err != nil {
		return "", err
	}
	if len(parts) > MaxParts {
		return "", ErrInputTooBig
	}
	var buf bytes.Buffer
	if err := encode(&buf, parts); err != nil {
		return "", err
	}
	if buf.Len() > MaxBytes {
		return "", ErrInputTooBig
	}
	sum := sha256.Sum256(buf.Bytes())
	key := fmt.Sprintf("%s:%s:%s", KeyVersion, scope, hex.EncodeToString(sum[:]))
	if len(key) > MaxKeyLen {
		return "", ErrInvalidKey
	}
	return key, nil
}

func ParseKey(key string) (KeyParts, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > MaxKeyLen {
		return KeyParts{}, ErrInvalidKey
	}
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != KeyVersion {
		return KeyParts{}, ErrInvalidKey
	}
	scope, err := normalizeScope(parts[1])
	if err != nil {
		return KeyParts{}, err
	}
	if len(parts[2]) != 64 || !isLowerHex(parts[2]) {
		return KeyParts{}, ErrInvalidKey
	}
	return KeyParts{Version: parts[0], Scope: scope, Hash: parts[2]}, nil
}

func normalizeScope(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxScopeLen {
		return "", ErrInvalidScope
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return "", ErrInvalidScope
	}
	return s, nil
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			continue
		}
		return false
	}
	return true
}

// encode writes canonical JSON-like bytes for hashing: map keys sorted,
// slice order kept.
func encode(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case string:
		b, _ := json.Marshal(x)
		buf.Write(b)
	case int:
		buf.WriteString(strconv.Itoa(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case json.Number:
		buf.WriteString(x.String())
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(x) {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, x[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case map[string]string:
		buf.WriteByte('{')
		for i, k := range sortedKeys(x) {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			vb, _ := json.Marshal(x[k])
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
		buf.WriteByte('}')
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
