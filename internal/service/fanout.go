package service

import (
	"context"
	"errors"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// Fanout delivers each event to every sink in order. One sink failing does
// not keep the event from the rest; the errors are joined.
type Fanout []domain.Sink

func (f Fanout) Emit(ctx context.Context, evt domain.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Emit(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.Sink = Fanout(nil)
