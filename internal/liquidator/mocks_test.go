package liquidator_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/shopspring/decimal"
)

// --- fixtures ---

var (
	fUSD     = domain.MustParseScriptHash("0x1005d400bcc2a56b7352f09e273be3f9933a5fb1")
	bNEO     = domain.MustParseScriptHash("0x48c40d4666f93408be1bef038b6722404d9a4c2a")
	flm      = domain.MustParseScriptHash("0xf0151f528127558851b39c2cd8aa47da7418ab28")
	flund    = domain.MustParseScriptHash("0xa9603a59e21d29e37ac39cf1b5f5abf5006b22a3")
	vaultSH  = domain.MustParseScriptHash("0xb3c7fbd2e6a4b1a2c9d3e4f5a6b7c8d9e0f1a2b3")
	routerSH = domain.MustParseScriptHash("0xf970f4ccecd765b63732b821775dc38c25d74f23")
	ownerSH  = domain.MustParseScriptHash("0x2222222222222222222222222222222222222222")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testProtocol() domain.Protocol {
	return domain.Protocol{
		FToken:           domain.Token{Hash: fUSD, Symbol: "fUSD", Decimals: 8},
		Collateral:       domain.Token{Hash: bNEO, Symbol: "bNEO", Decimals: 8},
		MaxLoanToValue:   dec("80"),
		LiquidationLimit: dec("50"),
		LiquidationBonus: dec("10"),
	}
}

func wrappedProtocol() domain.Protocol {
	p := testProtocol()
	wrapped := domain.Token{Hash: flund, Symbol: "FLUND", Decimals: 8}
	underlying := domain.Token{Hash: flm, Symbol: "FLM", Decimals: 8}
	p.Collateral = wrapped
	p.Wrapped, p.Underlying = &wrapped, &underlying
	return p
}

func account(b byte) domain.ScriptHash {
	var h domain.ScriptHash
	for i := range h {
		h[i] = b
	}
	return h
}

// underwater devuelve un vault con LTV 100% a precios (1, 0.2): liquidable.
func underwater(b byte) domain.Vault {
	return domain.Vault{Account: account(b), FTokenBalance: dec("100000000000"), CollateralBalance: dec("500000000000")}
}

// healthy devuelve un vault con LTV 10%.
func healthy(b byte) domain.Vault {
	return domain.Vault{Account: account(b), FTokenBalance: dec("10000000000"), CollateralBalance: dec("500000000000")}
}

func hashValue(h domain.ScriptHash) domain.StackValue {
	raw, _ := json.Marshal(base64.StdEncoding.EncodeToString(h.LE()))
	return domain.StackValue{Type: "ByteString", Value: raw}
}

func intValue(n int64) domain.StackValue {
	return domain.StackValue{Type: "Integer", Value: json.RawMessage(fmt.Sprintf("%q", fmt.Sprint(n)))}
}

func liquidateEvent(p domain.Protocol, liquidatee domain.ScriptHash, fQty, cQty int64) domain.ChainEvent {
	return domain.ChainEvent{
		Contract: vaultSH,
		Name:     "LiquidateCollateral",
		Values: []domain.StackValue{
			hashValue(p.Collateral.Hash), hashValue(p.FToken.Hash), hashValue(ownerSH),
			hashValue(liquidatee), intValue(fQty), intValue(cQty),
		},
	}
}

func transferEvent(contract, from, to domain.ScriptHash, amount int64) domain.ChainEvent {
	return domain.ChainEvent{
		Contract: contract,
		Name:     "Transfer",
		Values:   []domain.StackValue{hashValue(from), hashValue(to), intValue(amount)},
	}
}

// --- mocks ---

type mockLedger struct {
	mu       sync.Mutex
	balances map[domain.ScriptHash]decimal.Decimal
	prices   map[domain.ScriptHash]decimal.Decimal
	pages    [][]domain.Vault
	pageErrs map[int]error
	priceErr error
	balErr   error

	pagesRead    []int
	priceDecimal []int32
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		balances: map[domain.ScriptHash]decimal.Decimal{fUSD: dec("100000000000")},
		prices:   map[domain.ScriptHash]decimal.Decimal{fUSD: dec("1"), bNEO: dec("0.2")},
		pageErrs: map[int]error{},
	}
}

func (m *mockLedger) Symbol(_ context.Context, token domain.ScriptHash) (string, error) {
	switch token {
	case fUSD:
		return "fUSD", nil
	case bNEO:
		return "bNEO", nil
	case flm:
		return "FLM", nil
	case flund:
		return "FLUND", nil
	}
	return "", fmt.Errorf("unknown token: %w", domain.ErrLedgerUnavailable)
}

func (m *mockLedger) Decimals(_ context.Context, _ domain.ScriptHash) (int32, error) {
	return 8, nil
}

func (m *mockLedger) BalanceOf(_ context.Context, token, _ domain.ScriptHash) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balErr != nil {
		return decimal.Zero, m.balErr
	}
	if b, ok := m.balances[token]; ok {
		return b, nil
	}
	return decimal.Zero, nil
}

func (m *mockLedger) setBalance(token domain.ScriptHash, v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[token] = dec(v)
}

func (m *mockLedger) MaxLoanToValue(_ context.Context, _ domain.ScriptHash) (decimal.Decimal, error) {
	return dec("80"), nil
}

func (m *mockLedger) LiquidationLimit(_ context.Context, _ domain.ScriptHash) (decimal.Decimal, error) {
	return dec("50"), nil
}

func (m *mockLedger) LiquidationBonus(_ context.Context, _ domain.ScriptHash) (decimal.Decimal, error) {
	return dec("10"), nil
}

func (m *mockLedger) OnChainPrice(_ context.Context, token domain.ScriptHash, decimals int32) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceDecimal = append(m.priceDecimal, decimals)
	if m.priceErr != nil {
		return decimal.Zero, m.priceErr
	}
	return m.prices[token], nil
}

func (m *mockLedger) Vaults(_ context.Context, _, _ domain.ScriptHash, _, pageNum int) ([]domain.Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesRead = append(m.pagesRead, pageNum)
	if err, ok := m.pageErrs[pageNum]; ok {
		return nil, err
	}
	if pageNum >= len(m.pages) {
		return nil, nil
	}
	out := make([]domain.Vault, len(m.pages[pageNum]))
	copy(out, m.pages[pageNum])
	return out, nil
}

type mockFeed struct {
	feed  domain.SignedPriceFeed
	err   error
	calls int
}

func (m *mockFeed) FetchSigned(_ context.Context) (domain.SignedPriceFeed, error) {
	m.calls++
	return m.feed, m.err
}

// mockChain registra lo que se construye y envía. onSend simula la ejecución on-chain.
type mockChain struct {
	mu       sync.Mutex
	built    []domain.ContractCall
	sent     []*domain.Transaction
	buildErr error
	sendErrs []error // uno por envío; nil o agotado = éxito
	onSend   func(tx *domain.Transaction)
}

func (m *mockChain) Account() domain.ScriptHash { return ownerSH }

func (m *mockChain) Build(_ context.Context, call domain.ContractCall) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.built = append(m.built, call)
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	tx := &domain.Transaction{Call: call}
	tx.SetFees(1_000_000, 2_000_000)
	return tx, nil
}

func (m *mockChain) Send(_ context.Context, tx *domain.Transaction) (string, error) {
	m.mu.Lock()
	n := len(m.sent)
	m.sent = append(m.sent, tx)
	var err error
	if n < len(m.sendErrs) {
		err = m.sendErrs[n]
	}
	onSend := m.onSend
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if onSend != nil {
		onSend(tx)
	}
	return fmt.Sprintf("0x%064d", n+1), nil
}

func (m *mockChain) operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.built))
	for i, c := range m.built {
		ops[i] = c.Operation
	}
	return ops
}

func (m *mockChain) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockSub struct {
	contract domain.ScriptHash
	event    string
	ch       chan domain.ChainEvent
	mu       sync.Mutex
	closes   int
}

func (s *mockSub) Events() <-chan domain.ChainEvent { return s.ch }

func (s *mockSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *mockSub) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type mockStream struct {
	mu   sync.Mutex
	subs []*mockSub
	err  error
}

func (m *mockStream) Subscribe(_ context.Context, contract domain.ScriptHash, event string) (ports.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &mockSub{contract: contract, event: event, ch: make(chan domain.ChainEvent, 8)}
	m.subs = append(m.subs, s)
	return s, nil
}

// emit entrega el evento a las suscripciones abiertas sobre (contract, name).
func (m *mockStream) emit(ev domain.ChainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.contract == ev.Contract && s.event == ev.Name && s.closeCount() == 0 {
			s.ch <- ev
		}
	}
}

func (m *mockStream) all() []*mockSub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockSub(nil), m.subs...)
}

type mockNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (m *mockNotifier) Notify(_ context.Context, a domain.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

func (m *mockNotifier) kinds() []domain.AlertKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AlertKind, len(m.alerts))
	for i, a := range m.alerts {
		out[i] = a.Kind
	}
	return out
}

func (m *mockNotifier) find(kind domain.AlertKind) (domain.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.Kind == kind {
			return a, true
		}
	}
	return domain.Alert{}, false
}

type mockJournal struct {
	mu       sync.Mutex
	attempts map[string]domain.Attempt
	order    []string
	cycles   []domain.CycleSummary
}

func newMockJournal() *mockJournal {
	return &mockJournal{attempts: map[string]domain.Attempt{}}
}

func (m *mockJournal) SaveAttempt(_ context.Context, a domain.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.ID]; !ok {
		m.order = append(m.order, a.ID)
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *mockJournal) SaveCycle(_ context.Context, c domain.CycleSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, c)
	return nil
}

func (m *mockJournal) GetAttempts(_ context.Context, _, _ time.Time) ([]domain.Attempt, error) {
	return nil, nil
}

func (m *mockJournal) GetCycles(_ context.Context, _, _ time.Time) ([]domain.CycleSummary, error) {
	return nil, nil
}

func (m *mockJournal) Close() error { return nil }

func (m *mockJournal) states() []domain.AttemptState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AttemptState, len(m.order))
	for i, id := range m.order {
		out[i] = m.attempts[id].State
	}
	return out
}

var errBoom = errors.New("boom")
