package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// Console implementa ports.Notifier escribiendo una línea por alerta.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime la alerta con la hora local.
func (c *Console) Notify(_ context.Context, alert domain.Alert) {
	fmt.Fprintf(c.out, "[%s] %s\n", time.Now().Format("15:04:05"), alert.Message())
}

// ReportInput agrupa los datos del journal para el reporte.
type ReportInput struct {
	From     time.Time
	To       time.Time
	Attempts []domain.Attempt
	Cycles   []domain.CycleSummary
}

// PrintReport imprime el historial de intentos y el resumen de ciclos.
func (c *Console) PrintReport(in ReportInput) {
	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║                    LIQUIDATOR REPORT                         ║\n")
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════╝\n\n")
	fmt.Fprintf(c.out, "  Period: %s → %s\n", in.From.Format("2006-01-02 15:04"), in.To.Format("2006-01-02 15:04"))

	c.printCycleSummary(in.Cycles)

	fmt.Fprintf(c.out, "\n── ATTEMPTS (%d) ──\n", len(in.Attempts))
	if len(in.Attempts) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		fmt.Fprintln(c.out)
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Kind", "Account", "Pair", "Qty", "LTV", "State", "Tx")
	for _, a := range in.Attempts {
		account := "-"
		if a.Account != "" {
			account = truncate(a.Account, 14)
		}
		tx := "-"
		if a.TxID != "" {
			tx = truncate(a.TxID, 14)
		}
		ltv := "-"
		if !a.LoanToValue.IsZero() {
			ltv = a.LoanToValue.StringFixed(2) + "%"
		}
		table.Append(
			a.CreatedAt.Format("01-02 15:04:05"),
			string(a.Kind),
			account,
			a.FromSymbol+"/"+a.ToSymbol,
			a.Quantity.String(),
			ltv,
			stateLabel(a),
			tx,
		)
	}
	table.Render()

	counts := countStates(in.Attempts)
	fmt.Fprintf(c.out, "\n── SUMMARY ──\n")
	fmt.Fprintf(c.out, "  Confirmed:   %d\n", counts[domain.AttemptConfirmed])
	fmt.Fprintf(c.out, "  Unconfirmed: %d (may still have succeeded)\n", counts[domain.AttemptUnconfirmed])
	fmt.Fprintf(c.out, "  Failed:      %d\n", counts[domain.AttemptFailed])
	fmt.Fprintf(c.out, "  Dry run:     %d\n", counts[domain.AttemptDryRun])
	if pending := counts[domain.AttemptSubmitted]; pending > 0 {
		fmt.Fprintf(c.out, "  Unresolved:  %d (process stopped while waiting)\n", pending)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printCycleSummary(cycles []domain.CycleSummary) {
	fmt.Fprintf(c.out, "\n── CYCLES (%d) ──\n", len(cycles))
	if len(cycles) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	var (
		evaluated, eligible, liquidated, failed int
		total                                   time.Duration
	)
	for _, cy := range cycles {
		evaluated += cy.VaultsEvaluated
		eligible += cy.Eligible
		total += cy.Duration
		if cy.Liquidated {
			liquidated++
		}
		if cy.Error != "" {
			failed++
		}
	}
	last := cycles[0]
	avg := total / time.Duration(len(cycles))

	fmt.Fprintf(c.out, "  Vaults evaluated: %d | eligible: %d | cycles with liquidation: %d\n", evaluated, eligible, liquidated)
	fmt.Fprintf(c.out, "  Cycles with errors: %d | avg duration: %s\n", failed, avg.Truncate(time.Millisecond))
	fmt.Fprintf(c.out, "  Last balance: %s (at %s)\n", formatAmount(last.FTokenBalance), last.StartedAt.Format("2006-01-02 15:04:05"))
}

func stateLabel(a domain.Attempt) string {
	if a.State == domain.AttemptFailed && a.Error != "" {
		return "FAILED: " + truncate(a.Error, 30)
	}
	return string(a.State)
}

func countStates(attempts []domain.Attempt) map[domain.AttemptState]int {
	out := make(map[domain.AttemptState]int)
	for _, a := range attempts {
		out[a.State]++
	}
	return out
}

func formatAmount(d decimal.Decimal) string {
	return d.Round(4).String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
