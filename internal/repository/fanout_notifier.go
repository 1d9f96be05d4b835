package repository

import (
	"context"
	"errors"

	"QuotePulse/internal/domain/models"
	domrepo "QuotePulse/internal/domain/repository"
)

// FanoutNotifier delivers one update to several transports. Every target is
// attempted; errors are joined rather than short-circuiting.
type FanoutNotifier struct {
	targets []domrepo.Notifier
}

// NewFanoutNotifier builds a notifier over the non-nil targets.
func NewFanoutNotifier(targets ...domrepo.Notifier) *FanoutNotifier {
	out := &FanoutNotifier{}
	for _, t := range targets {
		if t != nil {
			out.targets = append(out.targets, t)
		}
	}
	return out
}

func (f *FanoutNotifier) NotifyQuote(ctx context.Context, u *models.QuoteUpdate) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.NotifyQuote(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutNotifier) Close() error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
