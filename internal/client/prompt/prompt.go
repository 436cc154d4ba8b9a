// Package prompt reads interactive input for the client shell.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when the input ends before a prompt is answered.
var ErrNoInput = errors.New("no input")

// Prompter asks questions on out and reads answers line by line from in.
// The shell and the prompts must share one Prompter so no buffered input is lost.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// New returns a Prompter over in and out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Line prints label and returns the next trimmed line.
func (p *Prompter) Line(label string) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", ErrNoInput
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Required repeats the prompt until a non-empty answer is given.
func (p *Prompter) Required(label string) (string, error) {
	for {
		v, err := p.Line(label)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintln(p.out, "A value is required.")
	}
}

// Login asks for the sign-in email and password.
func (p *Prompter) Login() (email, password string, err error) {
	if email, err = p.Required("Email: "); err != nil {
		return "", "", err
	}
	if password, err = p.Required("Password: "); err != nil {
		return "", "", err
	}
	return email, password, nil
}

// Registration asks for the fields of a new account.
func (p *Prompter) Registration() (name, email, password string, err error) {
	if name, err = p.Line("Name: "); err != nil {
		return "", "", "", err
	}
	if email, password, err = p.Login(); err != nil {
		return "", "", "", err
	}
	return name, email, password, nil
}
