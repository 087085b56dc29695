package launtel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBalanceLabelValue(t *testing.T) {
	page := `
	<dl>
		<dt>Current Balance</dt>
		<dd><span class="text-success">+$112.65</span></dd>
	</dl>`
	balance, ok := ParseBalance(docFromString(t, page))
	require.True(t, ok)
	require.InDelta(t, 112.65, balance, 0.001)
}

func TestParseBalanceNegative(t *testing.T) {
	page := `
	<dl>
		<dt>Current Balance</dt>
		<dd><span class="text-danger">-$50.00</span></dd>
	</dl>`
	balance, ok := ParseBalance(docFromString(t, page))
	require.True(t, ok)
	require.InDelta(t, -50.00, balance, 0.001)
}

func TestParseBalanceThousandsSeparator(t *testing.T) {
	page := `
	<dl>
		<dt>Current Balance</dt>
		<dd><span>$1,234.56</span></dd>
	</dl>`
	balance, ok := ParseBalance(docFromString(t, page))
	require.True(t, ok)
	require.InDelta(t, 1234.56, balance, 0.001)
}

func TestParseBalanceCardFallback(t *testing.T) {
	page := `
	<div class="card-balance">
		<dd><span>-$7.20</span></dd>
	</div>`
	balance, ok := ParseBalance(docFromString(t, page))
	require.True(t, ok)
	require.InDelta(t, -7.20, balance, 0.001)
}

func TestParseBalancePageTextFallback(t *testing.T) {
	page := `<p>Your account summary. Current Balance +$9.80 as of today.</p>`
	balance, ok := ParseBalance(docFromString(t, page))
	require.True(t, ok)
	require.InDelta(t, 9.80, balance, 0.001)
}

func TestParseBalanceUnknown(t *testing.T) {
	page := `<p>Nothing to see here.</p>`
	_, ok := ParseBalance(docFromString(t, page))
	require.False(t, ok)
}
