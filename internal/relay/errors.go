package relay

import "fmt"

// Code is a machine-readable validation error code.
type Code string

const (
	CodeDuplicateName       Code = "DUPLICATE_NAME"
	CodeDuplicateID         Code = "DUPLICATE_ID"
	CodeTargetNotFound      Code = "TARGET_NOT_FOUND"
	CodeSelfInvite          Code = "SELF_INVITE"
	CodeOnCooldown          Code = "ON_COOLDOWN"
	CodeNotLeader           Code = "NOT_LEADER"
	CodePartyFull           Code = "PARTY_FULL"
	CodeAlreadyMember       Code = "ALREADY_MEMBER"
	CodeGameInProgress      Code = "GAME_IN_PROGRESS"
	CodeNoPendingInvite     Code = "NO_PENDING_INVITE"
	CodeStaleParty          Code = "STALE_PARTY"
	CodeMemberNotFound      Code = "MEMBER_NOT_FOUND"
	CodeCannotKickSelf      Code = "CANNOT_KICK_SELF"
	CodeNotInParty          Code = "NOT_IN_PARTY"
	CodeGameAlreadyActive   Code = "GAME_ALREADY_ACTIVE"
	CodeGameNotActive       Code = "GAME_NOT_ACTIVE"
	CodeInsufficientPlayers Code = "INSUFFICIENT_PLAYERS"
	CodeUnknownCommand      Code = "UNKNOWN_COMMAND"
	CodeMissingArgument     Code = "MISSING_ARGUMENT"
)

// Error is a validation failure. Message is shown verbatim to the player who
// caused it.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is comparisons.
var (
	ErrDuplicateName       = &Error{Code: CodeDuplicateName}
	ErrDuplicateID         = &Error{Code: CodeDuplicateID}
	ErrTargetNotFound      = &Error{Code: CodeTargetNotFound}
	ErrSelfInvite          = &Error{Code: CodeSelfInvite}
	ErrOnCooldown          = &Error{Code: CodeOnCooldown}
	ErrNotLeader           = &Error{Code: CodeNotLeader}
	ErrPartyFull           = &Error{Code: CodePartyFull}
	ErrAlreadyMember       = &Error{Code: CodeAlreadyMember}
	ErrGameInProgress      = &Error{Code: CodeGameInProgress}
	ErrNoPendingInvite     = &Error{Code: CodeNoPendingInvite}
	ErrStaleParty          = &Error{Code: CodeStaleParty}
	ErrMemberNotFound      = &Error{Code: CodeMemberNotFound}
	ErrCannotKickSelf      = &Error{Code: CodeCannotKickSelf}
	ErrNotInParty          = &Error{Code: CodeNotInParty}
	ErrGameAlreadyActive   = &Error{Code: CodeGameAlreadyActive}
	ErrGameNotActive       = &Error{Code: CodeGameNotActive}
	ErrInsufficientPlayers = &Error{Code: CodeInsufficientPlayers}
	ErrUnknownCommand      = &Error{Code: CodeUnknownCommand}
	ErrMissingArgument     = &Error{Code: CodeMissingArgument}
)

const usernameTakenMessage = "Username is already taken."
