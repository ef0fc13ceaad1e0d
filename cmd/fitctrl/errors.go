package main

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// Command-level errors
var (
	// ErrOperationFailed signals a failure that was already reported to the
	// user through the display. main exits non-zero without printing a
	// duplicate message.
	ErrOperationFailed = errors.New("operation failed")

	// errFlagConflict indicates more than one action flag was given.
	errFlagConflict = errors.New("only one command can be specified at a time")
)

// FormatUserError turns a Go-convention error string into the single line
// shown to the user, capitalizing the first letter.
func FormatUserError(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
