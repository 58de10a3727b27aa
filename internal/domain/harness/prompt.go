package harness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	// ErrPromptExit is returned when the user answers ":e".
	ErrPromptExit = errors.New("prompt terminated")
	// ErrInputClosed is returned when input ends before an answer.
	ErrInputClosed = errors.New("input stream closed")
)

// Prompter asks the operator for values on a line-oriented terminal.
type Prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Prompt asks until a non-blank line is entered.
func (p *Prompter) Prompt(text string) (string, error) {
	return p.ask(text, "", false)
}

// PromptDefault is Prompt where ":d" accepts def.
func (p *Prompter) PromptDefault(text, def string) (string, error) {
	return p.ask(text, def, true)
}

func (p *Prompter) ask(text, def string, hasDefault bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if hasDefault {
			fmt.Fprintf(p.out, "%s [%s] (Type ':d' to use Default or ':e' to Exit): ", text, def)
		} else {
			fmt.Fprintf(p.out, "%s (Type ':e' to Exit): ", text)
		}

		line, err := p.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", ErrInputClosed
		}
		line = strings.TrimSpace(line)

		switch {
		case hasDefault && strings.EqualFold(line, ":d"):
			return def, nil
		case strings.EqualFold(line, ":e"):
			return "", ErrPromptExit
		case line == "":
			if err == io.EOF {
				return "", ErrInputClosed
			}
			if hasDefault {
				fmt.Fprintln(p.out, "Value is required. Enter a value or type ':d'/':e'.")
			} else {
				fmt.Fprintln(p.out, "Value is required. Enter a value or type ':e'.")
			}
			continue
		}
		return line, nil
	}
}
