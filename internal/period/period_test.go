package period

import (
	"errors"
	"math"
	"testing"
)

func TestIndex(t *testing.T) {
	cases := []struct {
		name    string
		current int64
		genesis int64
		length  int64
		want    int64
	}{
		{name: "genesis ledger", current: 1000, genesis: 1000, length: 17280, want: 1},
		{name: "first ledger after genesis", current: 1001, genesis: 1000, length: 17280, want: 1},
		{name: "end of first period", current: 1010, genesis: 1000, length: 10, want: 1},
		{name: "start of second period", current: 1011, genesis: 1000, length: 10, want: 2},
		{name: "exact multiple", current: 1030, genesis: 1000, length: 10, want: 3},
		{name: "unit length", current: 57, genesis: 50, length: 1, want: 7},
		{name: "before genesis within one period", current: 995, genesis: 1000, length: 10, want: 1},
		{name: "before genesis beyond one period", current: 985, genesis: 1000, length: 10, want: -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Index(tc.current, tc.genesis, tc.length)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Index(%d, %d, %d) = %d, want %d", tc.current, tc.genesis, tc.length, got, tc.want)
			}
		})
	}
}

func TestIndexGenesisIsAlwaysFirstPeriod(t *testing.T) {
	for _, genesis := range []int64{-500, 0, 1, 52_000_000} {
		for _, length := range []int64{1, 7, 17280} {
			got, err := Index(genesis, genesis, length)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != 1 {
				t.Fatalf("Index(g, g, %d) = %d, want 1", length, got)
			}
		}
	}
}

func TestIndexMonotonic(t *testing.T) {
	const genesis, length = int64(100), int64(7)
	prev := int64(math.MinInt64)
	for current := genesis - 30; current <= genesis+200; current++ {
		got, err := Index(current, genesis, length)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < prev {
			t.Fatalf("period decreased at %d: %d < %d", current, got, prev)
		}
		prev = got
	}
}

func TestIndexMatchesCeilDivision(t *testing.T) {
	const genesis, length = int64(40), int64(6)
	for current := genesis + 1; current <= genesis+100; current++ {
		diff := current - genesis
		want := (diff + length - 1) / length
		got, err := Index(current, genesis, length)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("Index(%d) = %d, want %d", current, got, want)
		}
	}
}

func TestIndexWideInputs(t *testing.T) {
	got, err := Index(math.MaxInt64, math.MinInt64+1, math.MaxInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("wide Index = %d, want 2", got)
	}
}

func TestIndexInvalidLength(t *testing.T) {
	for _, length := range []int64{0, -1} {
		if _, err := Index(10, 0, length); !errors.Is(err, ErrInvalidLength) {
			t.Fatalf("expected ErrInvalidLength for length %d, got %v", length, err)
		}
	}
}

func TestCurrent(t *testing.T) {
	got, err := Current(2_000, 1_000, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Fatalf("Current = %d, want 10", got)
	}
}
