package service

import (
	"time"

	"fundingportal/internal/metrics"

	"github.com/rs/zerolog"
)

// Options carries the collaborators shared by every service. Zero values are
// replaced by no-op implementations.
type Options struct {
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
