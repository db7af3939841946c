package liquidator_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/liquidator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePage(from, n int) []domain.Vault {
	out := make([]domain.Vault, n)
	for i := range out {
		out[i] = healthy(byte(from + i + 1))
	}
	return out
}

func TestPages_StopsAtEmptyPage(t *testing.T) {
	ledger := newMockLedger()
	ledger.pages = [][]domain.Vault{makePage(0, 3), makePage(3, 2)}
	s := liquidator.NewVaultScanner(ledger, testProtocol(), 3, 1)

	var seen int
	for page, err := range s.Pages(context.Background()) {
		require.NoError(t, err)
		seen += len(page.Vaults)
	}

	assert.Equal(t, 5, seen)
	assert.Equal(t, []int{0, 1, 2}, ledger.pagesRead, "empieza en la página 0 y para en la primera vacía")
}

func TestPages_ConsumerBreakStopsFetching(t *testing.T) {
	ledger := newMockLedger()
	ledger.pages = [][]domain.Vault{makePage(0, 2), makePage(2, 2), makePage(4, 2)}
	s := liquidator.NewVaultScanner(ledger, testProtocol(), 2, 1)

	for range s.Pages(context.Background()) {
		break
	}
	assert.Equal(t, []int{0}, ledger.pagesRead)

	// reiniciable: cada recorrido empieza de nuevo en la página 0
	for range s.Pages(context.Background()) {
		break
	}
	assert.Equal(t, []int{0, 0}, ledger.pagesRead)
}

func TestPages_MalformedPageIsSkipped(t *testing.T) {
	ledger := newMockLedger()
	ledger.pages = [][]domain.Vault{makePage(0, 2), nil, makePage(4, 2)}
	ledger.pageErrs[1] = fmt.Errorf("bad struct: %w", domain.ErrVaultData)
	s := liquidator.NewVaultScanner(ledger, testProtocol(), 2, 1)

	var errs, vaults int
	for page, err := range s.Pages(context.Background()) {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrVaultData)
			assert.Equal(t, 1, page.Number)
			errs++
			continue
		}
		vaults += len(page.Vaults)
	}

	assert.Equal(t, 1, errs)
	assert.Equal(t, 4, vaults)
	assert.Equal(t, []int{0, 1, 2, 3}, ledger.pagesRead)
}

func TestPages_TooManyMalformedPagesEndScan(t *testing.T) {
	ledger := newMockLedger()
	ledger.pages = make([][]domain.Vault, 6)
	for i := range 6 {
		ledger.pageErrs[i] = domain.ErrVaultData
	}
	s := liquidator.NewVaultScanner(ledger, testProtocol(), 2, 1)

	var errs int
	for _, err := range s.Pages(context.Background()) {
		require.Error(t, err)
		errs++
	}
	assert.Equal(t, 3, errs)
	assert.Equal(t, []int{0, 1, 2}, ledger.pagesRead)
}

func TestPages_LedgerErrorEndsScan(t *testing.T) {
	ledger := newMockLedger()
	ledger.pages = [][]domain.Vault{makePage(0, 2), makePage(2, 2)}
	ledger.pageErrs[1] = fmt.Errorf("rpc down: %w", domain.ErrLedgerUnavailable)
	s := liquidator.NewVaultScanner(ledger, testProtocol(), 2, 1)

	var last error
	for _, err := range s.Pages(context.Background()) {
		last = err
	}
	assert.ErrorIs(t, last, domain.ErrLedgerUnavailable)
	assert.Equal(t, []int{0, 1}, ledger.pagesRead)
}

func TestShuffle_IsPermutation(t *testing.T) {
	vaults := makePage(0, 20)
	shuffled := append([]domain.Vault(nil), vaults...)

	liquidator.Shuffle(rand.New(rand.NewPCG(3, 4)), shuffled)

	assert.ElementsMatch(t, vaults, shuffled)
	assert.NotEqual(t, vaults, shuffled, "20 elementos: la identidad es prácticamente imposible")
}

func TestShuffle_SeedDeterminism(t *testing.T) {
	a := makePage(0, 10)
	b := makePage(0, 10)

	liquidator.Shuffle(rand.New(rand.NewPCG(42, 42)), a)
	liquidator.Shuffle(rand.New(rand.NewPCG(42, 42)), b)

	assert.Equal(t, a, b)
}

func TestScanPage_SameSeedSameOrder(t *testing.T) {
	ledger := newMockLedger()
	ledger.pages = [][]domain.Vault{makePage(0, 10)}

	first, err := liquidator.NewVaultScanner(ledger, testProtocol(), 10, 9).ScanPage(context.Background(), 10, 0)
	require.NoError(t, err)
	second, err := liquidator.NewVaultScanner(ledger, testProtocol(), 10, 9).ScanPage(context.Background(), 10, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.ElementsMatch(t, ledger.pages[0], first)
}

func TestShuffle_EmptyAndSingle(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	liquidator.Shuffle(rng, nil)

	one := makePage(0, 1)
	liquidator.Shuffle(rng, one)
	assert.Len(t, one, 1)
}
