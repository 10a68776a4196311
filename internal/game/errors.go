// apps/go-server/internal/game/errors.go
//
// Error taxonomy of the game flow engine. Rule violations are sentinel
// errors so callers can map them with errors.Is:
//   - ErrNotFound:          unknown session or question.
//   - ErrAlreadyTerminal:   session already completed or cancelled.
//   - ErrIllegalTransition: event invalid in the current state.
//   - ErrTurnViolation:     actor lacks the required turn or role.
//   - ErrConflict:          lost a concurrent race; reload and resubmit.
// Anything else is a persistence failure and propagates untouched.

package game

import (
	"errors"

	"github.com/robalobadob/quizclash/apps/go-server/internal/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
	ErrAlreadyTerminal   = errors.New("session already finished")
	ErrIllegalTransition = errors.New("event not valid in current state")
	ErrTurnViolation     = errors.New("actor does not hold the required turn or role")
)

// Recoverable reports whether err is a domain-rule violation the client can
// correct and resubmit, as opposed to a persistence failure.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrTurnViolation)
}
