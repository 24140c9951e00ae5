package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/ledger"
	applog "gastos/internal/log"
)

// errQuit ends the session without an error.
var errQuit = errors.New("quit")

type action struct {
	key   string
	label string
	run   func(context.Context) error
}

type section struct {
	key     string
	title   string
	actions []action
}

// Menu is the numbered text menu over a ledger.
type Menu struct {
	ledger   *ledger.Ledger
	p        *prompter
	out      io.Writer
	now      func() time.Time
	logger   *applog.Logger
	sections []section
}

type MenuOption func(*Menu)

// WithMenuClock sets the clock used for default dates and periods.
func WithMenuClock(now func() time.Time) MenuOption {
	return func(m *Menu) { m.now = now }
}

func WithMenuLogger(logger *applog.Logger) MenuOption {
	return func(m *Menu) { m.logger = logger.WithComponent(applog.ComponentCLI) }
}

func NewMenu(l *ledger.Ledger, in io.Reader, out io.Writer, opts ...MenuOption) *Menu {
	m := &Menu{
		ledger: l,
		p:      newPrompter(in, out),
		out:    out,
		now:    time.Now,
		logger: applog.Discard().WithComponent(applog.ComponentCLI),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sections = []section{
		{key: "1", title: "Accounts", actions: m.accountActions()},
		{key: "2", title: "Expenses", actions: m.expenseActions()},
		{key: "3", title: "Incomes", actions: m.incomeActions()},
		{key: "4", title: "Transfers and wallet", actions: m.transferActions()},
		{key: "5", title: "Budgets", actions: m.budgetActions()},
		{key: "6", title: "Search", actions: m.searchActions()},
		{key: "7", title: "Reports", actions: m.reportActions()},
	}
	return m
}

// Run shows the main menu until the user quits, input ends or ctx is
// cancelled. Domain and input errors are printed and the session goes on;
// any other error ends it and is returned.
func (m *Menu) Run(ctx context.Context) error {
	m.printf("gastos - personal finance ledger\n")
	for {
		if ctx.Err() != nil {
			return nil
		}
		m.printf("\n== Main menu ==\n")
		for _, s := range m.sections {
			m.printf("%s. %s\n", s.key, s.title)
		}
		m.printf("0. Exit\n")

		choice, err := m.p.line("Choose")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(choice) {
		case "0", "q", "quit", "exit":
			m.printf("Bye.\n")
			return nil
		}

		s, ok := m.section(choice)
		if !ok {
			m.printf("Unknown option %q.\n", choice)
			continue
		}
		if err := m.runSection(ctx, s); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

func (m *Menu) section(key string) (section, bool) {
	for _, s := range m.sections {
		if s.key == key {
			return s, true
		}
	}
	return section{}, false
}

func (m *Menu) runSection(ctx context.Context, s section) error {
	for {
		if ctx.Err() != nil {
			return errQuit
		}
		m.printf("\n== %s ==\n", s.title)
		for _, a := range s.actions {
			m.printf("%s. %s\n", a.key, a.label)
		}
		m.printf("0. Back\n")

		choice, err := m.p.line("Choose")
		if errors.Is(err, io.EOF) {
			return errQuit
		}
		if err != nil {
			return err
		}
		if choice == "0" || choice == "" {
			return nil
		}

		var selected *action
		for i := range s.actions {
			if s.actions[i].key == choice {
				selected = &s.actions[i]
				break
			}
		}
		if selected == nil {
			m.printf("Unknown option %q.\n", choice)
			continue
		}
		if err := m.report(selected.run(ctx)); err != nil {
			return err
		}
	}
}

// report prints recoverable errors and passes the rest through.
func (m *Menu) report(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return errQuit
	case errors.Is(err, errInput), ledger.IsDomainError(err):
		m.printf("Error: %v\n", err)
		return nil
	default:
		m.logger.Error("Unexpected error, ending session",
			applog.FieldErrorType, applog.ErrorTypeInternal,
			applog.FieldError, err)
		return fmt.Errorf("menu: %w", err)
	}
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

func (m *Menu) today() core.Date {
	return core.DateOf(m.now())
}

func (m *Menu) currentPeriod() core.Period {
	return core.PeriodOf(m.today())
}
