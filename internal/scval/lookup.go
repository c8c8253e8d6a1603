package scval

import (
	"fmt"

	"github.com/stellar/go/xdr"
)

// Entry is one key/value pair of contract storage.
type Entry struct {
	Key xdr.ScVal
	Val xdr.ScVal
}

// Snapshot is an ordered view of contract storage.
type Snapshot []Entry

// FromMap converts an instance storage map into a Snapshot.
func FromMap(m *xdr.ScMap) Snapshot {
	if m == nil {
		return nil
	}
	out := make(Snapshot, 0, len(*m))
	for _, entry := range *m {
		out = append(out, Entry{Key: entry.Key, Val: entry.Val})
	}
	return out
}

// Find returns the value of the first entry whose key equals key.
func (s Snapshot) Find(key xdr.ScVal) (xdr.ScVal, bool) {
	want, err := key.MarshalBinary()
	if err != nil {
		return xdr.ScVal{}, false
	}
	for _, entry := range s {
		got, err := entry.Key.MarshalBinary()
		if err != nil {
			continue
		}
		if string(got) == string(want) {
			return entry.Val, true
		}
	}
	return xdr.ScVal{}, false
}

// Lookup finds key in the snapshot and decodes its value.
func Lookup[T any](s Snapshot, key xdr.ScVal, decode Decoder[T]) (T, error) {
	var zero T
	val, ok := s.Find(key)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingKey, describeKey(key))
	}
	out, err := decode(val)
	if err != nil {
		return zero, fmt.Errorf("key %s: %w", describeKey(key), err)
	}
	return out, nil
}

func describeKey(key xdr.ScVal) string {
	if name, fields, ok := MatchEnum(key); ok {
		if len(fields) == 0 {
			return name
		}
		return fmt.Sprintf("%s(%d fields)", name, len(fields))
	}
	if key.Type == xdr.ScValTypeScvSymbol && key.Sym != nil {
		return string(*key.Sym)
	}
	return key.Type.String()
}
