package toast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/pmcore/internal/model"
)

// Variant is the visual flavor of a toast.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantWarning Variant = "warning"
	VariantInfo    Variant = "info"
)

// Presenter shows ephemeral feedback. Calls are fire-and-forget.
type Presenter interface {
	Success(msg string)
	Error(msg string)
	Warning(msg string)
	Info(msg string)
}

// ForKind presents msg with the variant matching kind. Unknown kinds
// fall back to Info.
func ForKind(p Presenter, kind model.Kind, msg string) {
	switch kind {
	case model.KindSuccess:
		p.Success(msg)
	case model.KindError:
		p.Error(msg)
	case model.KindWarning:
		p.Warning(msg)
	default:
		p.Info(msg)
	}
}

// Nop discards every toast.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}
func (Nop) Warning(string) {}
func (Nop) Info(string)    {}

// Toast is a single presented message.
type Toast struct {
	Variant Variant
	Message string
}

// Recorder keeps every toast it is given, in order.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) add(v Variant, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Variant: v, Message: msg})
}

func (r *Recorder) Success(msg string) { r.add(VariantSuccess, msg) }
func (r *Recorder) Error(msg string)   { r.add(VariantError, msg) }
func (r *Recorder) Warning(msg string) { r.add(VariantWarning, msg) }
func (r *Recorder) Info(msg string)    { r.add(VariantInfo, msg) }

// Toasts returns a copy of everything recorded so far.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Logger writes toasts to a zap logger. It backs the non-interactive CLI.
type Logger struct {
	log *zap.Logger
}

// NewLogger returns a presenter that logs through l.
func NewLogger(l *zap.Logger) *Logger {
	return &Logger{log: l}
}

func (p *Logger) Success(msg string) { p.log.Info(msg, zap.String("toast", string(VariantSuccess))) }
func (p *Logger) Error(msg string)   { p.log.Error(msg, zap.String("toast", string(VariantError))) }
func (p *Logger) Warning(msg string) { p.log.Warn(msg, zap.String("toast", string(VariantWarning))) }
func (p *Logger) Info(msg string)    { p.log.Info(msg, zap.String("toast", string(VariantInfo))) }

// Multi fans every toast out to several presenters.
type Multi []Presenter

func (m Multi) Success(msg string) {
	for _, p := range m {
		p.Success(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, p := range m {
		p.Error(msg)
	}
}

func (m Multi) Warning(msg string) {
	for _, p := range m {
		p.Warning(msg)
	}
}

func (m Multi) Info(msg string) {
	for _, p := range m {
		p.Info(msg)
	}
}
