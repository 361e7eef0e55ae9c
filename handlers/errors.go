package handlers

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/l10n"
)

// ErrorKind enumerates the closed set of command invocation errors.
type ErrorKind int

const (
	ErrMissingArgument ErrorKind = iota
	ErrBadArgument
	ErrBadUnionArgument
	ErrNotOwner
	ErrMissingPermissions
	ErrBotMissingPermissions
	ErrMissingAnyRole
	ErrOnCooldown
	ErrUnknownCommand
	ErrForbidden
	ErrExtensionFailed
	ErrCommandInvoke
)

// CommandError is an invocation error carrying its kind and the parameters
// of its user-facing message.
type CommandError struct {
	Kind   ErrorKind
	Params map[string]string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command error %d: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("command error %d", e.Kind)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// errorMessages maps each handled kind to its message key. Dispatch is
// table-shaped so the handled set stays statically enumerable.
var errorMessages = map[ErrorKind]string{
	ErrMissingArgument:       "UserInputError-MissingRequiredArgument",
	ErrBadArgument:           "UserInputError-BadArgument",
	ErrBadUnionArgument:      "UserInputError-BadUnionArgument",
	ErrNotOwner:              "CheckFailure-NotOwner",
	ErrMissingPermissions:    "CheckFailure-MissingPermissions",
	ErrBotMissingPermissions: "CheckFailure-BotMissingPermissions",
	ErrMissingAnyRole:        "CheckFailure-MissingAnyRole",
	ErrOnCooldown:            "CommandOnCooldown",
	ErrForbidden:             "CommandInvokeError-Forbidden",
	ErrExtensionFailed:       "CommandInvokeError-Extension",
	ErrCommandInvoke:         "CommandError-Generic",
}

// Classifier turns command invocation errors into localized replies.
type Classifier struct {
	fmt *l10n.Formatter
	log zerolog.Logger
}

// NewClassifier wires a Classifier.
func NewClassifier(f *l10n.Formatter, log zerolog.Logger) *Classifier {
	return &Classifier{fmt: f, log: log}
}

// Handle replies with the localized message for err. Unknown commands are
// swallowed silently; anything outside the closed set goes to the operator
// log, never dropped.
func (c *Classifier) Handle(locale string, err error, reply func(string)) {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		c.log.Error().Err(err).Msg("unhandled command error")
		return
	}

	if cmdErr.Kind == ErrUnknownCommand {
		return
	}

	key, ok := errorMessages[cmdErr.Kind]
	if !ok {
		c.log.Error().Err(cmdErr).Int("kind", int(cmdErr.Kind)).Msg("unhandled command error kind")
		return
	}
	if cmdErr.Kind == ErrCommandInvoke {
		c.log.Error().Err(cmdErr).Msg("command invocation failed")
	}
	reply(c.fmt.Format(locale, key, cmdErr.Params))
}
