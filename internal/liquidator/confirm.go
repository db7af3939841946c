package liquidator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
)

// ConfirmState es el estado de una confirmación pendiente.
type ConfirmState int

const (
	Listening ConfirmState = iota
	Confirmed
	TimedOut
	Cancelled
)

func (s ConfirmState) String() string {
	switch s {
	case Listening:
		return "listening"
	case Confirmed:
		return "confirmed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("ConfirmState(%d)", int(s))
	}
}

// Matcher decide si una notificación confirma la acción esperada.
type Matcher func(domain.ChainEvent) bool

// Confirmation es el resultado de esperar una acción.
type Confirmation struct {
	State   ConfirmState
	Event   domain.ChainEvent // solo si State == Confirmed
	Latency time.Duration
}

// Confirmer registra listeners sobre el stream de eventos.
type Confirmer struct {
	stream ports.EventStream
	wait   time.Duration
}

// NewConfirmer crea un Confirmer con la espera máxima dada.
func NewConfirmer(stream ports.EventStream, wait time.Duration) *Confirmer {
	return &Confirmer{stream: stream, wait: wait}
}

// Listen registra el listener antes del envío. El plazo empieza a contar en Wait.
func (c *Confirmer) Listen(ctx context.Context, contract domain.ScriptHash, event string, match Matcher) (*Pending, error) {
	sub, err := c.stream.Subscribe(ctx, contract, event)
	if err != nil {
		return nil, fmt.Errorf("liquidator.Listen: %s %s: %w", contract, event, err)
	}
	return &Pending{sub: sub, match: match, wait: c.wait, state: Listening}, nil
}

// Pending es una confirmación en curso. Se resuelve una sola vez: la suscripción
// se cierra exactamente una vez y los eventos posteriores se ignoran.
type Pending struct {
	sub   ports.Subscription
	match Matcher
	wait  time.Duration

	mu    sync.Mutex
	state ConfirmState
	once  sync.Once
}

// State devuelve el estado actual.
func (p *Pending) State() ConfirmState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Wait espera el evento que casa con el matcher o el fin del plazo, lo que llegue antes.
// Un cierre del stream o del ctx cuenta como no confirmado: la tx ya salió y puede
// haberse ejecutado igualmente.
func (p *Pending) Wait(ctx context.Context) Confirmation {
	start := time.Now()
	timer := time.NewTimer(p.wait)
	defer timer.Stop()

	events := p.sub.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return p.resolve(TimedOut, domain.ChainEvent{}, start)
			}
			if p.match(ev) {
				return p.resolve(Confirmed, ev, start)
			}
		case <-timer.C:
			return p.resolve(TimedOut, domain.ChainEvent{}, start)
		case <-ctx.Done():
			return p.resolve(TimedOut, domain.ChainEvent{}, start)
		}
	}
}

// Cancel resuelve la confirmación sin esperar, para acciones que nunca se enviaron.
func (p *Pending) Cancel() {
	p.resolve(Cancelled, domain.ChainEvent{}, time.Now())
}

func (p *Pending) resolve(state ConfirmState, ev domain.ChainEvent, start time.Time) Confirmation {
	resolved := false
	p.once.Do(func() {
		resolved = true
		p.mu.Lock()
		p.state = state
		p.mu.Unlock()
		_ = p.sub.Close()
	})
	if !resolved {
		return Confirmation{State: p.State()}
	}
	return Confirmation{State: state, Event: ev, Latency: time.Since(start)}
}
