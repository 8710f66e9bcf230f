package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	workStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	breakStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// prompter reads answers from in, one line at a time.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal to disable echo on for secrets, or -1.
	fd int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{in: bufio.NewReader(in), out: out, fd: fd}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, labelStyle.Render(label)+": ")
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret reads a line without echo when attached to a terminal.
func (p *prompter) secret(label string) (string, error) {
	if p.fd < 0 {
		return p.line(label)
	}
	fmt.Fprint(p.out, labelStyle.Render(label)+": ")
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// orPrompt returns value unless it is empty, in which case it asks.
func (p *prompter) orPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return p.line(label)
}
