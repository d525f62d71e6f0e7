package reconcile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func shares(d Distribution) []string {
	out := make([]string, len(d.Updates))
	for i, u := range d.Updates {
		out[i] = u.Balance.StringFixed(2)
	}
	return out
}

func TestDistribute(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	cases := []struct {
		name      string
		remaining string
		banks     []Snapshot
		want      []string
		equal     bool
	}{
		{"proportional", "1000", []Snapshot{{a, amt("100")}, {b, amt("200")}}, []string{"333.33", "666.67"}, false},
		{"last absorbs rounding", "100", []Snapshot{{a, amt("1")}, {b, amt("1")}, {c, amt("1")}}, []string{"33.33", "33.33", "33.34"}, false},
		{"equal split on zero priors", "7000", []Snapshot{{a, decimal.Zero}, {b, decimal.Zero}}, []string{"3500.00", "3500.00"}, true},
		{"priors cancel out", "90", []Snapshot{{a, amt("50")}, {b, amt("-50")}, {c, decimal.Zero}}, []string{"30.00", "30.00", "30.00"}, true},
		{"single bank takes all", "12.34", []Snapshot{{a, amt("5")}}, []string{"12.34"}, false},
		{"negative remaining", "-300", []Snapshot{{a, amt("1")}, {b, amt("2")}}, []string{"-100.00", "-200.00"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Distribute(amt(tc.remaining), tc.banks)
			require.Equal(t, tc.want, shares(got))
			require.Equal(t, tc.equal, got.EqualSplit)

			total := decimal.Zero
			for i, u := range got.Updates {
				require.Equal(t, tc.banks[i].BankID, u.BankID)
				total = total.Add(u.Balance)
			}
			require.True(t, total.Equal(amt(tc.remaining).Round(2)))
		})
	}
}

func TestDistributeNoBanks(t *testing.T) {
	got := Distribute(amt("500"), nil)
	require.Empty(t, got.Updates)
	require.False(t, got.EqualSplit)
}
