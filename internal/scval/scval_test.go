package scval

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContract(t *testing.T, seed string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(seed))
	addr, err := strkey.Encode(strkey.VersionByteContract, sum[:])
	require.NoError(t, err)
	return addr
}

func testAccount(t *testing.T, seed string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(seed))
	addr, err := strkey.Encode(strkey.VersionByteAccountID, sum[:])
	require.NoError(t, err)
	return addr
}

func TestI128RoundTrip(t *testing.T) {
	limit := new(big.Int).Lsh(big.NewInt(1), 127)
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(-1),
		big.NewInt(1_000_000_000_000),
		new(big.Int).Lsh(big.NewInt(3), 90),
		new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(5), 100)),
		new(big.Int).Sub(limit, big.NewInt(1)),
		new(big.Int).Neg(limit),
	}

	for _, v := range values {
		encoded, err := I128(v)
		require.NoError(t, err)
		decoded, err := DecodeBigInt(encoded)
		require.NoError(t, err)
		assert.Equal(t, 0, v.Cmp(decoded), "want %s got %s", v, decoded)
	}
}

func TestI128NegativeOneParts(t *testing.T) {
	encoded, err := I128(big.NewInt(-1))
	require.NoError(t, err)
	require.NotNil(t, encoded.I128)
	assert.Equal(t, xdr.Int64(-1), encoded.I128.Hi)
	assert.Equal(t, xdr.Uint64(^uint64(0)), encoded.I128.Lo)
}

func TestI128OutOfRange(t *testing.T) {
	_, err := I128(new(big.Int).Lsh(big.NewInt(1), 127))
	assert.Error(t, err)
}

func TestAddressRoundTrip(t *testing.T) {
	for _, addr := range []string{testContract(t, "pool"), testAccount(t, "user")} {
		v, err := Address(addr)
		require.NoError(t, err)
		got, err := DecodeAddress(v)
		require.NoError(t, err)
		assert.Equal(t, addr, got)
	}

	_, err := Address("XYZ")
	assert.Error(t, err)
}

func TestDecodeMismatch(t *testing.T) {
	_, err := DecodeBool(I32(4))
	assert.True(t, errors.Is(err, ErrDecodeMismatch))

	_, err = DecodeInt64(Bool(true))
	assert.True(t, errors.Is(err, ErrDecodeMismatch))

	_, err = DecodeBigInt(String("12"))
	assert.True(t, errors.Is(err, ErrDecodeMismatch))

	_, err = DecodeAddress(String("GABC"))
	assert.True(t, errors.Is(err, ErrDecodeMismatch))
}

func TestDecodeStringAcceptsTextualShapes(t *testing.T) {
	s, err := DecodeString(String("USDC"))
	require.NoError(t, err)
	assert.Equal(t, "USDC", s)

	s, err = DecodeString(Symbol("XLM"))
	require.NoError(t, err)
	assert.Equal(t, "XLM", s)

	contract := testContract(t, "token")
	v, err := Address(contract)
	require.NoError(t, err)
	s, err = DecodeString(v)
	require.NoError(t, err)
	assert.Equal(t, contract, s)
}

func TestLookup(t *testing.T) {
	snap := Snapshot{
		{Key: EnumKey("Periods"), Val: I32(17280)},
		{Key: EnumKey("External"), Val: Bool(true)},
		{Key: EnumKey("Periods"), Val: I32(1)},
	}

	periods, err := Lookup(snap, EnumKey("Periods"), DecodeInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(17280), periods, "first matching entry wins")

	external, err := Lookup(snap, EnumKey("External"), DecodeBool)
	require.NoError(t, err)
	assert.True(t, external)

	_, err = Lookup(snap, EnumKey("Admin"), DecodeAddress)
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = Lookup(snap, EnumKey("External"), DecodeInt64)
	assert.True(t, errors.Is(err, ErrDecodeMismatch))
}

func TestFromMap(t *testing.T) {
	m := xdr.ScMap{
		{Key: EnumKey("Symbol"), Val: String("pUSD")},
	}
	snap := FromMap(&m)
	require.Len(t, snap, 1)
	got, err := Lookup(snap, EnumKey("Symbol"), DecodeString)
	require.NoError(t, err)
	assert.Equal(t, "pUSD", got)

	assert.Nil(t, FromMap(nil))
}

func TestMatchEnum(t *testing.T) {
	name, fields, ok := MatchEnum(EnumKey("TotSupply", I32(3)))
	require.True(t, ok)
	assert.Equal(t, "TotSupply", name)
	require.Len(t, fields, 1)

	_, _, ok = MatchEnum(I32(3))
	assert.False(t, ok)

	_, _, ok = MatchEnum(Vec(I32(1), Symbol("x")))
	assert.False(t, ok)

	_, _, ok = MatchEnum(Vec())
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Symbol("deployed"), Symbol("deployed")))
	assert.False(t, Equal(Symbol("deployed"), String("deployed")))
}

func TestDecodeI128RejectsOtherIntegers(t *testing.T) {
	v, err := I128(big.NewInt(-42))
	require.NoError(t, err)
	got, err := DecodeI128(v)
	require.NoError(t, err)
	assert.Equal(t, "-42", got.String())

	_, err = DecodeI128(I32(7))
	assert.True(t, errors.Is(err, ErrDecodeMismatch))
}
