// Package iocli is the terminal the board client talks through: command
// output, flag usage and the access token prompt.
package iocli

import "io"

// IO is the console of a client command. Write makes it usable as the
// output of a command's flag set.
type IO interface {
	io.Writer
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadSecret читает токен доступа: без эха в терминале, строкой из pipe
	ReadSecret(prompt string) (string, error)
}
