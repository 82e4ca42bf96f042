package lifecycle

import "context"

// Hook is one named teardown step.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}
