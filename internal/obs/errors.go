package obs

import "fmt"

// Wrap attaches context to err in the style used throughout this
// module: "<msg>: <err>", preserving err for errors.Is/As.
func Wrap(err error, msg string) error {
	if err == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
