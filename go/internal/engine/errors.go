package engine

import "errors"

// Code is a stable, machine-readable rejection code sent to clients.
type Code string

const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeInvalidPhase     Code = "INVALID_PHASE"
	CodeUnknownPlayer    Code = "UNKNOWN_PLAYER"
	CodeSelfVote         Code = "SELF_VOTE"
	CodeInvalidConfig    Code = "INVALID_CONFIG"
	CodeMalformedMessage Code = "MALFORMED_MESSAGE"
	CodeInvalidTarget    Code = "INVALID_TARGET"
	CodeInternal         Code = "INTERNAL"
)

var (
	ErrUnauthorized     = errors.New("only the host can do that")
	ErrInvalidPhase     = errors.New("action not allowed in the current phase")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrSelfVote         = errors.New("you cannot vote against your own answer")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrMalformedMessage = errors.New("malformed message")
	ErrInvalidTarget    = errors.New("invalid target player")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidPhase, CodeInvalidPhase},
	{ErrUnknownPlayer, CodeUnknownPlayer},
	{ErrSelfVote, CodeSelfVote},
	{ErrInvalidConfig, CodeInvalidConfig},
	{ErrMalformedMessage, CodeMalformedMessage},
	{ErrInvalidTarget, CodeInvalidTarget},
}

// CodeOf maps an engine error (possibly wrapped) to its Code.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
