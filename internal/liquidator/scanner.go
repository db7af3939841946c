package liquidator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
)

// maxMalformedPages es cuántas páginas malformadas seguidas se toleran antes de
// dar el scan del ciclo por terminado.
const maxMalformedPages = 3

// Page es una página del registro de vaults ya barajada.
type Page struct {
	Number int
	Vaults []domain.Vault
}

// VaultScanner pagina el registro de vaults de un par (colateral, fToken).
type VaultScanner struct {
	ledger     ports.Ledger
	collateral domain.ScriptHash
	fToken     domain.ScriptHash
	pageSize   int
	rng        *rand.Rand
}

// NewVaultScanner crea el scanner. seed 0 usa una semilla aleatoria por proceso;
// cualquier otro valor hace el orden de liquidación reproducible.
func NewVaultScanner(ledger ports.Ledger, p domain.Protocol, pageSize int, seed uint64) *VaultScanner {
	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(seed, seed)
	}
	return &VaultScanner{
		ledger:     ledger,
		collateral: p.Collateral.Hash,
		fToken:     p.FToken.Hash,
		pageSize:   pageSize,
		rng:        rand.New(src),
	}
}

// ScanPage lee una página y la baraja. Una página vacía marca el final del registro.
func (s *VaultScanner) ScanPage(ctx context.Context, pageSize, pageNum int) ([]domain.Vault, error) {
	vaults, err := s.ledger.Vaults(ctx, s.collateral, s.fToken, pageSize, pageNum)
	if err != nil {
		return nil, fmt.Errorf("liquidator.ScanPage: page %d: %w", pageNum, err)
	}
	Shuffle(s.rng, vaults)
	return vaults, nil
}

// Pages recorre el registro desde la página 0 hasta la primera página vacía.
// Es perezoso: el consumidor puede cortar en cualquier momento y cada llamada
// empieza de nuevo. Una página malformada se entrega como error y el recorrido
// sigue; maxMalformedPages seguidas lo terminan. Cualquier otro error lo termina.
func (s *VaultScanner) Pages(ctx context.Context) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		malformed := 0
		for pageNum := 0; ; pageNum++ {
			if ctx.Err() != nil {
				return
			}

			vaults, err := s.ScanPage(ctx, s.pageSize, pageNum)
			if err != nil {
				if !errors.Is(err, domain.ErrVaultData) {
					yield(Page{Number: pageNum}, err)
					return
				}
				malformed++
				if !yield(Page{Number: pageNum}, err) {
					return
				}
				if malformed >= maxMalformedPages {
					slog.Warn("too many malformed pages, ending scan", "page", pageNum)
					return
				}
				continue
			}
			malformed = 0

			if len(vaults) == 0 {
				return
			}
			if !yield(Page{Number: pageNum, Vaults: vaults}, nil) {
				return
			}
		}
	}
}

// Shuffle baraja in situ con Fisher–Yates.
func Shuffle(rng *rand.Rand, vaults []domain.Vault) {
	for i := len(vaults) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		vaults[i], vaults[j] = vaults[j], vaults[i]
	}
}
