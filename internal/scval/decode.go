package scval

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/stellar/go/xdr"
)

var (
	// ErrMissingKey is returned when a snapshot has no entry for a key.
	ErrMissingKey = errors.New("missing key")
	// ErrDecodeMismatch is returned when a value has the wrong shape for the requested type.
	ErrDecodeMismatch = errors.New("decode mismatch")
)

// Decoder converts a raw value into T.
type Decoder[T any] func(xdr.ScVal) (T, error)

func mismatch(want string, got xdr.ScVal) error {
	return fmt.Errorf("%w: want %s, got %s", ErrDecodeMismatch, want, got.Type.String())
}

// DecodeString accepts string, symbol and address values.
func DecodeString(v xdr.ScVal) (string, error) {
	switch v.Type {
	case xdr.ScValTypeScvString:
		if v.Str != nil {
			return string(*v.Str), nil
		}
	case xdr.ScValTypeScvSymbol:
		if v.Sym != nil {
			return string(*v.Sym), nil
		}
	case xdr.ScValTypeScvAddress:
		if v.Address != nil {
			return FormatAddress(*v.Address)
		}
	}
	return "", mismatch("string", v)
}

// DecodeAddress accepts address values only.
func DecodeAddress(v xdr.ScVal) (string, error) {
	if v.Type != xdr.ScValTypeScvAddress || v.Address == nil {
		return "", mismatch("address", v)
	}
	return FormatAddress(*v.Address)
}

// DecodeBool accepts bool values.
func DecodeBool(v xdr.ScVal) (bool, error) {
	if v.Type != xdr.ScValTypeScvBool || v.B == nil {
		return false, mismatch("bool", v)
	}
	return *v.B, nil
}

// DecodeInt64 accepts 32- and 64-bit integers that fit in int64.
func DecodeInt64(v xdr.ScVal) (int64, error) {
	switch v.Type {
	case xdr.ScValTypeScvI32:
		if v.I32 != nil {
			return int64(*v.I32), nil
		}
	case xdr.ScValTypeScvU32:
		if v.U32 != nil {
			return int64(*v.U32), nil
		}
	case xdr.ScValTypeScvI64:
		if v.I64 != nil {
			return int64(*v.I64), nil
		}
	case xdr.ScValTypeScvU64:
		if v.U64 != nil && uint64(*v.U64) <= math.MaxInt64 {
			return int64(*v.U64), nil
		}
	}
	return 0, mismatch("int64", v)
}

// DecodeI128 accepts i128 values only.
func DecodeI128(v xdr.ScVal) (*big.Int, error) {
	if v.Type != xdr.ScValTypeScvI128 || v.I128 == nil {
		return nil, mismatch("i128", v)
	}
	return int128ToBig(*v.I128), nil
}

// DecodeBigInt accepts any integer value up to 128 bits.
func DecodeBigInt(v xdr.ScVal) (*big.Int, error) {
	switch v.Type {
	case xdr.ScValTypeScvI128:
		if v.I128 != nil {
			return int128ToBig(*v.I128), nil
		}
	case xdr.ScValTypeScvU128:
		if v.U128 != nil {
			hi := new(big.Int).SetUint64(uint64(v.U128.Hi))
			hi.Lsh(hi, 64)
			return hi.Add(hi, new(big.Int).SetUint64(uint64(v.U128.Lo))), nil
		}
	case xdr.ScValTypeScvU64:
		if v.U64 != nil {
			return new(big.Int).SetUint64(uint64(*v.U64)), nil
		}
	case xdr.ScValTypeScvI64, xdr.ScValTypeScvI32, xdr.ScValTypeScvU32:
		n, err := DecodeInt64(v)
		if err != nil {
			return nil, err
		}
		return big.NewInt(n), nil
	}
	return nil, mismatch("i128", v)
}

func int128ToBig(parts xdr.Int128Parts) *big.Int {
	out := big.NewInt(int64(parts.Hi))
	out.Lsh(out, 64)
	return out.Add(out, new(big.Int).SetUint64(uint64(parts.Lo)))
}
