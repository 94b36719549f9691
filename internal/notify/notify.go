package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Notifier raises fire-and-forget notifications. Failures never affect the
// routing decision that triggered them; callers log and move on.
type Notifier interface {
	Notify(title, body string) error
}

// Desktop shows an OS-level popup.
type Desktop struct{}

func NewDesktop() *Desktop {
	return &Desktop{}
}

func (d *Desktop) Notify(title, body string) error {
	if err := beeep.Notify(title, body, ""); err != nil {
		return fmt.Errorf("sending desktop notification: %w", err)
	}
	return nil
}

// Noop is used when notifications are disabled.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Notify(_, _ string) error {
	return nil
}
