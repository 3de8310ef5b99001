package app

import (
	"github.com/joacominatel/aiodb/internal/driver"
	"github.com/joacominatel/aiodb/internal/loop"
	"github.com/joacominatel/aiodb/internal/metrics"
)

// bridge registers op's callback pair so that its first delivery settles
// fut on the loop. A delivery reaching a future that is already done,
// typically because the consumer cancelled it, is dropped without a trace.
func (s *Session) bridge(op driver.Operation, fut *loop.Future[*driver.ResultSet]) {
	op.OnComplete(
		func(rs *driver.ResultSet) {
			_ = s.loop.Post(func() {
				if fut.SetResult(rs) {
					s.metrics.Future(metrics.OutcomeResolved)
				} else {
					s.metrics.Future(metrics.OutcomeIgnored)
				}
				s.releaseLater(op)
			})
		},
		func(err error) {
			_ = s.loop.Post(func() {
				if fut.SetError(err) {
					s.metrics.Future(metrics.OutcomeFailed)
				} else {
					s.metrics.Future(metrics.OutcomeIgnored)
				}
			})
		},
	)
}

// releaseLater releases op on the executor; only the first page of a
// bridged query is ever read.
func (s *Session) releaseLater(op driver.Operation) {
	if _, ok := op.(driver.Releaser); !ok {
		return
	}
	if err := s.exec.Submit(func() { s.release(op) }); err != nil {
		s.logger.Warn("could not schedule operation release", "err", err)
	}
}
