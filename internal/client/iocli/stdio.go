package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio is the console of an interactive or scripted session. Prompts go to
// stderr so command output on stdout stays clean for redirection.
type Stdio struct {
	in     *os.File
	out    io.Writer
	prompt io.Writer
}

// NewStdio returns the console bound to the process standard streams.
func NewStdio() *Stdio {
	return NewConsole(os.Stdin, os.Stdout, os.Stderr)
}

// NewConsole binds the console to explicit streams.
func NewConsole(in *os.File, out, prompt io.Writer) *Stdio {
	return &Stdio{in: in, out: out, prompt: prompt}
}

func (s *Stdio) Println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// ReadSecret prompts for a secret. On a terminal the input is not echoed;
// otherwise the first line of input is used, so a token can be piped in.
func (s *Stdio) ReadSecret(prompt string) (string, error) {
	fd := int(s.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(s.in).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(s.prompt, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
