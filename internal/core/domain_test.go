package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Due  Date `json:"due"`
		Paid Date `json:"paid"`
	}{Due: NewDate(2025, 3, 7)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"due":"07/03/2025","paid":null}` {
		t.Fatalf("unexpected json: %s", b)
	}

	var back struct {
		Due  Date `json:"due"`
		Paid Date `json:"paid"`
	}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Due.Equal(NewDate(2025, 3, 7).Time) || !back.Paid.IsZero() {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-02-29"); err != nil || d.String() != "29/02/2024" {
		t.Fatalf("scan string: %v %v", d, err)
	}
	if err := d.Scan(time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)); err != nil || d.String() != "01/05/2024" {
		t.Fatalf("scan time: %v %v", d, err)
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Fatalf("scan nil: %v %v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Fatal("expected error for int")
	}
}

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"03/2025", NewPeriod(3, 2025), true},
		{"12/1999", NewPeriod(12, 1999), true},
		{"13/2025", Period{}, false},
		{"2025", Period{}, false},
		{"aa/2025", Period{}, false},
	}
	for _, tc := range cases {
		got, err := ParsePeriod(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %v err %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
	if NewPeriod(3, 2025).String() != "03/2025" {
		t.Fatal("period key format")
	}
}

func TestApplyBalanceChange(t *testing.T) {
	a := Account{Name: "Checking", Balance: dec("100")}
	m := a.ApplyBalanceChange(dec("40"), "Payment: rent", dec("-60"), time.Now())

	if !a.Balance.Equal(dec("40")) {
		t.Fatalf("balance = %s", a.Balance)
	}
	if !m.PriorBalance.Equal(dec("100")) || !m.Consistent() {
		t.Fatalf("unexpected movement %+v", m)
	}
	if !a.Consistent() || len(a.History) != 1 {
		t.Fatalf("account not consistent: %+v", a)
	}

	c := a.Clone()
	c.ApplyBalanceChange(dec("0"), "x", dec("-40"), time.Now())
	if len(a.History) != 1 {
		t.Fatal("clone shares history")
	}
}

func TestExpenseNormalize(t *testing.T) {
	today := NewDate(2025, 6, 10)

	instant := Expense{Description: "coffee", Amount: dec("5"), Kind: KindInstant, DueDate: NewDate(2025, 7, 1)}
	instant.Normalize(today)
	if !instant.Paid || !instant.DueDate.IsZero() || !instant.PaidDate.Equal(today.Time) {
		t.Fatalf("instant not normalized: %+v", instant)
	}

	normal := Expense{Description: "rent", Amount: dec("500")}
	normal.Normalize(today)
	if normal.Kind != KindNormal || !normal.DueDate.Equal(today.Time) || normal.Paid {
		t.Fatalf("normal not normalized: %+v", normal)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{Description: "ok", Amount: dec("1"), Kind: KindNormal, DueDate: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Description: "", Amount: dec("1"), Kind: KindNormal},
		{Description: "a", Amount: dec("0"), Kind: KindNormal},
		{Description: "a", Amount: dec("-3"), Kind: KindNormal},
		{Description: "a", Amount: dec("1"), Kind: "weird"},
		{Description: "a", Amount: dec("1"), Kind: KindInstant},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetPercentUsed(t *testing.T) {
	b := Budget{Category: "Food", Limit: dec("300"), CurrentSpend: dec("250")}
	if got := b.PercentUsed().Round(2).String(); got != "83.33" {
		t.Fatalf("percent = %s", got)
	}
	if !(Budget{}).PercentUsed().IsZero() {
		t.Fatal("zero limit should give zero percent")
	}
}

func TestPaidByCategory(t *testing.T) {
	expenses := []Expense{
		{Amount: dec("10"), Category: "Food", Paid: true},
		{Amount: dec("5.5"), Category: " food ", Paid: true},
		{Amount: dec("99"), Category: "Food"},
		{Amount: dec("20"), Category: "Rent", Paid: true},
	}

	got := PaidByCategory(expenses)
	if !got["food"].Equal(dec("15.5")) {
		t.Errorf("food = %s, want 15.5", got["food"])
	}
	if !got["rent"].Equal(dec("20")) {
		t.Errorf("rent = %s, want 20", got["rent"])
	}
	if _, ok := got["Food"]; ok {
		t.Error("keys must be normalized")
	}
}
