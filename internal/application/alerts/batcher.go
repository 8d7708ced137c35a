package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/gestion-pyme/internal/domain/alert"
)

// Toast aviso agregado para el operador.
type Toast struct {
	Severity string `json:"severity"` // critical | low
	Count    int    `json:"count"`
	Message  string `json:"message"`
}

// Batcher acumula alertas nuevas durante una ventana fija y emite como máximo
// un Toast por severidad al vencer la ventana.
type Batcher struct {
	window time.Duration
	emit   func(Toast)

	mu       sync.Mutex
	low      map[string]struct{}
	critical map[string]struct{}
	timer    *time.Timer
	stopped  bool
}

// NewBatcher crea un Batcher; emit se llama desde el goroutine del timer.
func NewBatcher(window time.Duration, emit func(Toast)) *Batcher {
	return &Batcher{
		window:   window,
		emit:     emit,
		low:      make(map[string]struct{}),
		critical: make(map[string]struct{}),
	}
}

// Add registra id en el bucket de su severidad. La ventana arranca con el primer Add.
func (b *Batcher) Add(sev alert.Severity, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	switch sev {
	case alert.SeverityCritical:
		b.critical[id] = struct{}{}
	case alert.SeverityLow:
		b.low[id] = struct{}{}
	default:
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

func (b *Batcher) flush() {
	b.mu.Lock()
	crit, low := len(b.critical), len(b.low)
	b.critical = make(map[string]struct{})
	b.low = make(map[string]struct{})
	b.timer = nil
	b.mu.Unlock()

	if crit > 0 {
		b.emit(Toast{Severity: "critical", Count: crit, Message: fmt.Sprintf("Stock crítico: %d producto(s) afectados", crit)})
	}
	if low > 0 {
		b.emit(Toast{Severity: "low", Count: low, Message: fmt.Sprintf("Stock bajo: %d producto(s) afectados", low)})
	}
}

// Stop descarta lo pendiente y no acepta más entradas.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
