// Package indicator renders access intents for the user.
//
// LED plays fixed patterns on an RGB LED from a worker goroutine; Indicate
// only enqueues and never blocks the door loop. Log writes intents to a
// logger. Multi fans one intent out to several indicators.
package indicator

import (
	"github.com/backkem/rfidlock/pkg/access"
	"github.com/pion/logging"
)

// Log is an indicator that logs intents.
type Log struct {
	log logging.LeveledLogger
}

// NewLog creates a Log indicator. A nil factory yields a no-op indicator.
func NewLog(factory logging.LoggerFactory) *Log {
	l := &Log{}
	if factory != nil {
		l.log = factory.NewLogger("indicator")
	}
	return l
}

// Indicate implements access.Indicator.
func (l *Log) Indicate(intent access.Intent) {
	if l.log == nil {
		return
	}
	switch intent {
	case access.IntentDeny:
		l.log.Warnf("intent %s", intent)
	default:
		l.log.Infof("intent %s", intent)
	}
}

// Multi forwards each intent to every indicator in order.
type Multi []access.Indicator

// Indicate implements access.Indicator.
func (m Multi) Indicate(intent access.Intent) {
	for _, ind := range m {
		if ind != nil {
			ind.Indicate(intent)
		}
	}
}

// Verify implementations.
var (
	_ access.Indicator = (*Log)(nil)
	_ access.Indicator = Multi(nil)
	_ access.Indicator = (*LED)(nil)
)
