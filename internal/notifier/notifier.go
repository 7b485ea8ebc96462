package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Notifier publishes a text message to one channel.
type Notifier interface {
	Publish(ctx context.Context, message string) error
	Name() string
}

// Multi fans a message out to every channel. Each channel is tried even
// when an earlier one fails; the failures are joined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the application log. It is the fallback
// when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Publish(_ context.Context, message string) error {
	log.Info().Str("channel", "log").Msg(message)
	return nil
}

// Combine returns the single channel, a Multi, or LogNotifier when none is given.
func Combine(channels ...Notifier) Notifier {
	switch len(channels) {
	case 0:
		return LogNotifier{}
	case 1:
		return channels[0]
	default:
		return Multi(channels)
	}
}
