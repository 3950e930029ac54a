// Package clipboard wraps the system clipboard used when no share target
// is configured.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")

// Available reports whether a clipboard backend was found.
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if !Available() {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}
