package usage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorix/backend/internal/apperr"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestReserveFirstUseInitializesWindows(t *testing.T) {
	now := day(t, "2026-03-15")

	c, err := reserve(Counters{}, Limits{Daily: 1000}, 100, now)
	require.NoError(t, err)
	assert.Equal(t, int64(100), c.TokensUsedDay)
	assert.Equal(t, int64(100), c.TokensUsedMonth)
	require.NotNil(t, c.LastResetDaily)
	assert.True(t, c.LastResetDaily.Equal(day(t, "2026-03-15")))
	require.NotNil(t, c.LastResetMonthly)
	assert.Equal(t, 3, *c.LastResetMonthly)
}

func TestReserveRollsOverStaleDay(t *testing.T) {
	yesterday := day(t, "2026-03-14")
	month := 3
	c := Counters{
		TokensUsedDay:    950,
		TokensUsedMonth:  5000,
		LastResetDaily:   &yesterday,
		LastResetMonthly: &month,
	}

	got, err := reserve(c, Limits{Daily: 1000, Monthly: 100000}, 100, day(t, "2026-03-15"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TokensUsedDay, "day counter starts fresh")
	assert.Equal(t, int64(5100), got.TokensUsedMonth, "month counter carries on")
}

func TestReserveRollsOverStaleMonth(t *testing.T) {
	lastOfMarch := day(t, "2026-03-31")
	month := 3
	c := Counters{
		TokensUsedDay:    100,
		TokensUsedMonth:  99999,
		LastResetDaily:   &lastOfMarch,
		LastResetMonthly: &month,
	}

	got, err := reserve(c, Limits{Monthly: 100000}, 500, day(t, "2026-04-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.TokensUsedMonth)
	assert.Equal(t, 4, *got.LastResetMonthly)
}

func TestReserveDailyLimitBoundary(t *testing.T) {
	today := day(t, "2026-03-15")
	month := 3
	c := Counters{TokensUsedDay: 900, TokensUsedMonth: 900, LastResetDaily: &today, LastResetMonthly: &month}

	// Landing exactly on the limit is allowed.
	got, err := reserve(c, Limits{Daily: 1000}, 100, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.TokensUsedDay)

	// One past it is not.
	_, err = reserve(c, Limits{Daily: 1000}, 101, today)
	require.Error(t, err)
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
}

func TestReserveMonthlyLimit(t *testing.T) {
	today := day(t, "2026-03-15")
	month := 3
	c := Counters{TokensUsedMonth: 9950, LastResetDaily: &today, LastResetMonthly: &month}

	_, err := reserve(c, Limits{Monthly: 10000}, 100, today)
	require.Error(t, err)
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
}

func TestReserveZeroLimitMeansUnlimited(t *testing.T) {
	today := day(t, "2026-03-15")
	month := 3
	c := Counters{TokensUsedDay: 1 << 40, TokensUsedMonth: 1 << 40, LastResetDaily: &today, LastResetMonthly: &month}

	_, err := reserve(c, Limits{}, 1_000_000, today)
	assert.NoError(t, err)
}

func TestReserveRejectionKeepsRollover(t *testing.T) {
	yesterday := day(t, "2026-03-14")
	month := 3
	c := Counters{TokensUsedDay: 999, LastResetDaily: &yesterday, LastResetMonthly: &month}

	got, err := reserve(c, Limits{Daily: 50}, 100, day(t, "2026-03-15"))
	require.Error(t, err)
	assert.Equal(t, int64(0), got.TokensUsedDay, "rollover still applies on rejection")
	assert.True(t, got.LastResetDaily.Equal(day(t, "2026-03-15")))
}

func TestSettleRefundsOverestimate(t *testing.T) {
	c := Counters{TokensUsedDay: 1500, TokensUsedMonth: 1500}

	got := settle(c, 1500, 900)
	assert.Equal(t, int64(900), got.TokensUsedDay)
	assert.Equal(t, int64(900), got.TokensUsedMonth)
}

func TestSettleChargesUnderestimate(t *testing.T) {
	c := Counters{TokensUsedDay: 1500, TokensUsedMonth: 4500}

	got := settle(c, 1500, 2100)
	assert.Equal(t, int64(2100), got.TokensUsedDay)
	assert.Equal(t, int64(5100), got.TokensUsedMonth)
}

func TestSettleClampsAtZero(t *testing.T) {
	// A refund bigger than the live counter, possible right after a
	// rollover zeroed it, must not drive the counter negative.
	c := Counters{TokensUsedDay: 100, TokensUsedMonth: 100}

	got := settle(c, 1500, 0)
	assert.Equal(t, int64(0), got.TokensUsedDay)
	assert.Equal(t, int64(0), got.TokensUsedMonth)
}

// The row lock serializes reserve decisions; modelling it with a mutex,
// a budget of M token units admits exactly M of N competing requests.
func TestReserveSerializedAdmitsExactlyBudget(t *testing.T) {
	const (
		workers  = 50
		capacity = 20
	)
	today := day(t, "2026-03-15")
	month := 3

	var (
		mu       sync.Mutex
		c        = Counters{LastResetDaily: &today, LastResetMonthly: &month}
		admitted int
		wg       sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			next, err := reserve(c, Limits{Daily: capacity}, 1, today)
			c = next
			if err == nil {
				admitted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, admitted)
	assert.Equal(t, int64(capacity), c.TokensUsedDay)
}
