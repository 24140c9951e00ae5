package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// errInput marks a bad answer to a prompt. The menu reports it and carries
// on like a domain error.
var errInput = errors.New("invalid input")

func badInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInput, fmt.Sprintf(format, args...))
}

// prompter reads one answer per line. io.EOF ends the session.
type prompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{sc: bufio.NewScanner(in), out: out}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		fmt.Fprintln(p.out)
		return "", io.EOF
	}
	return strings.TrimSpace(p.sc.Text()), nil
}

// text returns def when the answer is blank.
func (p *prompter) text(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	s, err := p.line(label)
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func (p *prompter) required(label string) (string, error) {
	s, err := p.line(label)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", badInput("%s is required", strings.ToLower(label))
	}
	return s, nil
}

// optionalText returns nil for a blank answer.
func (p *prompter) optionalText(label string) (*string, error) {
	s, err := p.line(label + " (blank keeps)")
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

func (p *prompter) amount(label string) (decimal.Decimal, error) {
	s, err := p.line(label)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, badInput("amount %q must be a positive number", s)
	}
	return d, nil
}

// signedAmount returns def for a blank answer.
func (p *prompter) signedAmount(label string, def decimal.Decimal) (decimal.Decimal, error) {
	s, err := p.line(fmt.Sprintf("%s [%s]", label, core.FormatMoney(def)))
	if err != nil {
		return decimal.Zero, err
	}
	if s == "" {
		return def, nil
	}
	d, err := core.ParseSignedAmount(s)
	if err != nil {
		return decimal.Zero, badInput("amount %q is not a number", s)
	}
	return d, nil
}

// optionalAmount returns nil for a blank answer.
func (p *prompter) optionalAmount(label string) (*decimal.Decimal, error) {
	s, err := p.line(label)
	if err != nil || s == "" {
		return nil, err
	}
	d, err := core.ParseSignedAmount(s)
	if err != nil || d.IsNegative() {
		return nil, badInput("amount %q must be a non-negative number", s)
	}
	return &d, nil
}

// date returns def for a blank answer.
func (p *prompter) date(label string, def core.Date) (core.Date, error) {
	if !def.IsZero() {
		label = fmt.Sprintf("%s (DD/MM/YYYY) [%s]", label, def)
	} else {
		label += " (DD/MM/YYYY)"
	}
	s, err := p.line(label)
	if err != nil {
		return core.Date{}, err
	}
	if s == "" {
		return def, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, badInput("%v", err)
	}
	return d, nil
}

func (p *prompter) optionalDate(label string) (*core.Date, error) {
	d, err := p.date(label, core.Date{})
	if err != nil || d.IsZero() {
		return nil, err
	}
	return &d, nil
}

func (p *prompter) period(def core.Period) (core.Period, error) {
	s, err := p.line(fmt.Sprintf("Period (MM/YYYY) [%s]", def))
	if err != nil {
		return core.Period{}, err
	}
	if s == "" {
		return def, nil
	}
	period, err := core.ParsePeriod(s)
	if err != nil {
		return core.Period{}, badInput("%v", err)
	}
	return period, nil
}

func (p *prompter) id(label string) (int64, error) {
	s, err := p.line(label)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badInput("%q is not a valid id", s)
	}
	return id, nil
}

func (p *prompter) number(label string, def int) (int, error) {
	s, err := p.line(fmt.Sprintf("%s [%d]", label, def))
	if err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badInput("%q is not a valid number", s)
	}
	return n, nil
}

// confirm defaults to no.
func (p *prompter) confirm(label string) (bool, error) {
	s, err := p.line(label + " (y/N)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// tristate maps y/n/blank to true/false/nil.
func (p *prompter) tristate(label string) (*bool, error) {
	s, err := p.line(label + " (y/n, blank for any)")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "y", "yes":
		v := true
		return &v, nil
	case "n", "no":
		v := false
		return &v, nil
	default:
		return nil, badInput("answer y, n or leave blank")
	}
}
