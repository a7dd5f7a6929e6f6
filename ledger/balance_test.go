package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/obligation-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testAccount(opening string) ledger.Account {
	return ledger.Account{
		ID:      "acc-1",
		Name:    "Checking",
		Kind:    ledger.AccountOrdinary,
		Opening: ledger.MustDecimal(opening),
	}
}

func mustEntry(t *testing.T, id string, kind ledger.EntryKind, magnitude string, date time.Time) ledger.Entry {
	t.Helper()
	e, err := ledger.NewEntry(ledger.EntryID(id), "acc-1", kind, ledger.MustDecimal(magnitude), date)
	require.NoError(t, err)
	return e
}

var day = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

// =============================================================================
// SIGN CONVENTION TESTS
// =============================================================================

func TestSignedAmount_KindDecidesStoredSign(t *testing.T) {
	cases := []struct {
		kind ledger.EntryKind
		want string
	}{
		{ledger.KindWithdrawal, "100"},
		{ledger.KindTransferOut, "100"},
		{ledger.KindPayment, "100"},
		{ledger.KindLoanDisbursed, "100"},
		{ledger.KindDeposit, "-100"},
		{ledger.KindTransferIn, "-100"},
		{ledger.KindLoanRepayment, "-100"},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			got, err := ledger.SignedAmount(tc.kind, ledger.MustDecimal("100"))
			require.NoError(t, err)
			assert.True(t, got.Equal(ledger.MustDecimal(tc.want)),
				"kind %s: want %s, got %s", tc.kind, tc.want, got)
		})
	}
}

func TestSignedAmount_RejectsNonPositiveMagnitude(t *testing.T) {
	_, err := ledger.SignedAmount(ledger.KindDeposit, ledger.MustDecimal("0"))
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = ledger.SignedAmount(ledger.KindDeposit, ledger.MustDecimal("-5"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestSignedAmount_RejectsUnknownKind(t *testing.T) {
	_, err := ledger.SignedAmount("accrual", ledger.MustDecimal("10"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// BALANCE DERIVATION TESTS
// =============================================================================

func TestBalance_WithdrawalReducesBalance(t *testing.T) {
	// GIVEN: Opening 10000
	// WHEN: A 1000 withdrawal is recorded
	// THEN: Balance is 10000 - (+1000) = 9000

	account := testAccount("10000")
	entries := []ledger.Entry{
		mustEntry(t, "e1", ledger.KindWithdrawal, "1000", day),
	}

	got := ledger.Balance(account, entries)
	assert.True(t, got.Equal(ledger.MustDecimal("9000")), "got %s", got)
}

func TestBalance_DepositIncreasesBalance(t *testing.T) {
	// Deposit is stored negative, so opening - (-1000) = 11000.
	account := testAccount("10000")
	entries := []ledger.Entry{
		mustEntry(t, "e1", ledger.KindDeposit, "1000", day),
	}

	got := ledger.Balance(account, entries)
	assert.True(t, got.Equal(ledger.MustDecimal("11000")), "got %s", got)
}

func TestBalance_LoanLifecycle(t *testing.T) {
	// GIVEN: Zero opening, 1500 disbursed, repayments of 100 and 500
	// WHEN: Balance is derived
	// THEN: 0 - (1500 - 100 - 500) = -900 still owed

	account := testAccount("0")
	entries := []ledger.Entry{
		mustEntry(t, "e1", ledger.KindLoanDisbursed, "1500", day),
		mustEntry(t, "e2", ledger.KindLoanRepayment, "100", day.AddDate(0, 1, 0)),
		mustEntry(t, "e3", ledger.KindLoanRepayment, "500", day.AddDate(0, 2, 0)),
	}

	got := ledger.Balance(account, entries)
	assert.True(t, got.Equal(ledger.MustDecimal("-900")), "got %s", got)
}

func TestBalance_OrderIndependent(t *testing.T) {
	account := testAccount("500")
	a := mustEntry(t, "e1", ledger.KindWithdrawal, "120.50", day)
	b := mustEntry(t, "e2", ledger.KindDeposit, "300", day)
	c := mustEntry(t, "e3", ledger.KindPayment, "79.50", day)

	forward := ledger.Balance(account, []ledger.Entry{a, b, c})
	backward := ledger.Balance(account, []ledger.Entry{c, b, a})

	assert.True(t, forward.Equal(backward))
	assert.True(t, forward.Equal(ledger.MustDecimal("600")), "got %s", forward)
}

func TestBalance_IgnoresOtherAccounts(t *testing.T) {
	account := testAccount("100")
	foreign, err := ledger.NewEntry("e9", "acc-other", ledger.KindWithdrawal, ledger.MustDecimal("40"), day)
	require.NoError(t, err)

	got := ledger.Balance(account, []ledger.Entry{foreign})
	assert.True(t, got.Equal(ledger.MustDecimal("100")), "got %s", got)
}

func TestBalance_DeletionReflectedImmediately(t *testing.T) {
	// The balance is replayed from whatever entry set exists right now. After
	// removing the withdrawal from the set, the money is back.
	account := testAccount("1000")
	w := mustEntry(t, "e1", ledger.KindWithdrawal, "250", day)

	before := ledger.Balance(account, []ledger.Entry{w})
	after := ledger.Balance(account, nil)

	assert.True(t, before.Equal(ledger.MustDecimal("750")), "got %s", before)
	assert.True(t, after.Equal(ledger.MustDecimal("1000")), "got %s", after)
}

// =============================================================================
// TRANSFER TESTS
// =============================================================================

func TestTransfer_PairCarriesOppositeSigns(t *testing.T) {
	out, in, err := ledger.Transfer("e1", "e2", "acc-src", "acc-dst", ledger.MustDecimal("400"), day)
	require.NoError(t, err)

	assert.Equal(t, ledger.KindTransferOut, out.Kind)
	assert.Equal(t, ledger.KindTransferIn, in.Kind)
	assert.True(t, out.Amount.Equal(ledger.MustDecimal("400")))
	assert.True(t, in.Amount.Equal(ledger.MustDecimal("-400")))
	assert.Equal(t, ledger.AccountID("acc-dst"), out.CounterAccountID)
	assert.Equal(t, ledger.AccountID("acc-src"), in.CounterAccountID)
}

func TestTransfer_MovesMoneyBetweenBalances(t *testing.T) {
	src := ledger.Account{ID: "acc-src", Kind: ledger.AccountOrdinary, Opening: ledger.MustDecimal("1000")}
	dst := ledger.Account{ID: "acc-dst", Kind: ledger.AccountOrdinary, Opening: ledger.MustDecimal("0")}

	out, in, err := ledger.Transfer("e1", "e2", src.ID, dst.ID, ledger.MustDecimal("250"), day)
	require.NoError(t, err)

	all := []ledger.Entry{out, in}
	assert.True(t, ledger.Balance(src, all).Equal(ledger.MustDecimal("750")))
	assert.True(t, ledger.Balance(dst, all).Equal(ledger.MustDecimal("250")))
}

func TestTransfer_SameAccountRejected(t *testing.T) {
	_, _, err := ledger.Transfer("e1", "e2", "acc-1", "acc-1", ledger.MustDecimal("10"), day)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// SUM TESTS
// =============================================================================

func TestSumAbs_UnsignedVolume(t *testing.T) {
	entries := []ledger.Entry{
		mustEntry(t, "e1", ledger.KindPayment, "30", day),
		mustEntry(t, "e2", ledger.KindDeposit, "70", day),
	}

	got := ledger.SumAbs(entries)
	assert.True(t, got.Equal(ledger.MustDecimal("100")), "got %s", got)
}
