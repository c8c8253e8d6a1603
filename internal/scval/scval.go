// Package scval encodes and decodes Soroban contract values and looks up typed
// values in snapshots of contract storage.
package scval

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

var (
	two64     = new(big.Int).Lsh(big.NewInt(1), 64)
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Symbol builds a symbol value.
func Symbol(name string) xdr.ScVal {
	sym := xdr.ScSymbol(name)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

// String builds a string value.
func String(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

// Bool builds a bool value.
func Bool(b bool) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

// I32 builds a signed 32-bit value.
func I32(v int32) xdr.ScVal {
	i := xdr.Int32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvI32, I32: &i}
}

// Vec builds a vector value.
func Vec(items ...xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(items)
	ptr := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &ptr}
}

// EnumKey encodes a contract enum variant the way contract types are stored:
// a vector holding the variant symbol followed by its fields.
func EnumKey(variant string, fields ...xdr.ScVal) xdr.ScVal {
	items := make([]xdr.ScVal, 0, len(fields)+1)
	items = append(items, Symbol(variant))
	items = append(items, fields...)
	return Vec(items...)
}

// I128FromInt64 widens v to a 128-bit value.
func I128FromInt64(v int64) xdr.ScVal {
	out, _ := I128(big.NewInt(v))
	return out
}

// I128 builds a signed 128-bit value.
func I128(v *big.Int) (xdr.ScVal, error) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return xdr.ScVal{}, fmt.Errorf("value out of i128 range: %s", v.String())
	}
	lo := new(big.Int).Mod(v, two64)
	hi := new(big.Int).Sub(v, lo)
	hi.Rsh(hi, 64)
	parts := xdr.Int128Parts{
		Hi: xdr.Int64(hi.Int64()),
		Lo: xdr.Uint64(lo.Uint64()),
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}, nil
}

// Address builds an address value from a G... account or C... contract strkey.
func Address(address string) (xdr.ScVal, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

// ParseAddress converts a strkey into an ScAddress.
func ParseAddress(address string) (xdr.ScAddress, error) {
	address = strings.TrimSpace(address)
	switch {
	case strings.HasPrefix(address, "G"):
		accountID, err := ParseAccountID(address)
		if err != nil {
			return xdr.ScAddress{}, err
		}
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &accountID}, nil
	case strings.HasPrefix(address, "C"):
		contractID, err := ParseContractID(address)
		if err != nil {
			return xdr.ScAddress{}, err
		}
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &contractID}, nil
	default:
		return xdr.ScAddress{}, fmt.Errorf("unsupported address: %q", address)
	}
}

// ParseAccountID decodes a G... strkey.
func ParseAccountID(address string) (xdr.AccountId, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, address)
	if err != nil {
		return xdr.AccountId{}, fmt.Errorf("invalid account %q: %w", address, err)
	}
	var key xdr.Uint256
	copy(key[:], raw)
	return xdr.AccountId{Type: xdr.PublicKeyTypePublicKeyTypeEd25519, Ed25519: &key}, nil
}

// ParseContractID decodes a C... strkey.
func ParseContractID(address string) (xdr.Hash, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, address)
	if err != nil {
		return xdr.Hash{}, fmt.Errorf("invalid contract %q: %w", address, err)
	}
	var id xdr.Hash
	copy(id[:], raw)
	return id, nil
}

// FormatAddress renders an ScAddress as its strkey.
func FormatAddress(addr xdr.ScAddress) (string, error) {
	switch addr.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if addr.AccountId == nil || addr.AccountId.Ed25519 == nil {
			return "", fmt.Errorf("%w: empty account address", ErrDecodeMismatch)
		}
		return strkey.Encode(strkey.VersionByteAccountID, addr.AccountId.Ed25519[:])
	case xdr.ScAddressTypeScAddressTypeContract:
		if addr.ContractId == nil {
			return "", fmt.Errorf("%w: empty contract address", ErrDecodeMismatch)
		}
		return strkey.Encode(strkey.VersionByteContract, addr.ContractId[:])
	default:
		return "", fmt.Errorf("%w: address type %d", ErrDecodeMismatch, addr.Type)
	}
}

// Equal reports whether two values share the same XDR encoding.
func Equal(a, b xdr.ScVal) bool {
	ab, err := a.MarshalBinary()
	if err != nil {
		return false
	}
	bb, err := b.MarshalBinary()
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// VecItems returns the elements of a vector value.
func VecItems(v xdr.ScVal) ([]xdr.ScVal, bool) {
	if v.Type != xdr.ScValTypeScvVec || v.Vec == nil || *v.Vec == nil {
		return nil, false
	}
	return **v.Vec, true
}

// MatchEnum reports whether v has the shape of an enum variant key and, if so,
// returns the variant name and its fields.
func MatchEnum(v xdr.ScVal) (string, []xdr.ScVal, bool) {
	items, ok := VecItems(v)
	if !ok || len(items) == 0 {
		return "", nil, false
	}
	if items[0].Type != xdr.ScValTypeScvSymbol || items[0].Sym == nil {
		return "", nil, false
	}
	return string(*items[0].Sym), items[1:], true
}
