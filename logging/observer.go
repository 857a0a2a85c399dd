package logging

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/warp/contract-engine/generic"
)

// TransitionLogger logs every transition attempt. Successful transitions go
// to info, rejections to warn, store failures to error.
type TransitionLogger struct {
	logger *bolt.Logger
}

var _ generic.TransitionObserver = (*TransitionLogger)(nil)

// NewTransitionLogger logs to l, or to the default logger when l is nil.
func NewTransitionLogger(l *bolt.Logger) *TransitionLogger {
	return &TransitionLogger{logger: l}
}

func (t *TransitionLogger) get() *bolt.Logger {
	if t.logger != nil {
		return t.logger
	}
	return Get()
}

func (t *TransitionLogger) TransitionApplied(_ context.Context, c generic.Contract, tr generic.Transition) {
	NewEvent(t.get().Info()).Add(
		Component("lifecycle"),
		ContractID(c.ID),
		ContractNumber(c.Number),
		Product(c.Product),
		FromStatus(tr.From),
		ToStatus(tr.To),
		Actor(tr.Entry.Actor, tr.Entry.Role),
	).Msg("contract transitioned")
}

func (t *TransitionLogger) TransitionRejected(_ context.Context, c generic.Contract, to generic.Status, err error) {
	event := t.get().Warn()
	if !generic.IsClientError(err) {
		event = t.get().Error()
	}
	le := NewEvent(event).Add(
		Component("lifecycle"),
		ContractID(c.ID),
		Product(c.Product),
		FromStatus(c.Status),
		ToStatus(to),
		ErrorField(err),
	)
	var missing *generic.PreconditionMissingError
	if errors.As(err, &missing) {
		for _, f := range missing.Fields {
			le.Add(Str("missing_field", f))
		}
	}
	le.Msg("contract transition rejected")
}
