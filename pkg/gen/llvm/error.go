package llvmgen

import (
	"github.com/kartiknair/kaleido/pkg/token"
)

// Error is a lowering error at the token of the offending expression or
// prototype. Error returns only the message, like parser errors do.
type Error struct {
	Pos token.Pos
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

func errorAt(t token.Token, message string) *Error {
	return &Error{Pos: t.Pos, Msg: message}
}
