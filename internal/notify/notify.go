// Package notify delivers human-readable outcome events. Delivery is
// fire-and-forget: emitters never wait for or inspect a result.
package notify

import (
	"fmt"

	"go.uber.org/zap"
)

type Notifier interface {
	Emit(message string)
}

// Func adapts a plain function to Notifier.
type Func func(message string)

func (f Func) Emit(message string) { f(message) }

// Nop discards every event.
var Nop Notifier = Func(func(string) {})

// LogNotifier writes events to the global zap logger.
type LogNotifier struct{}

func (LogNotifier) Emit(message string) {
	zap.L().Info("Economy event", zap.String("message", message))
}

// Emitf formats and emits when n is not nil.
func Emitf(n Notifier, format string, args ...any) {
	if n == nil {
		return
	}
	n.Emit(fmt.Sprintf(format, args...))
}
