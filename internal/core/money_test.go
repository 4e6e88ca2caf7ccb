package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"5000", 5000, true},
		{" 250 ", 250, true},
		{"1.500.000", 1500000, true},
		{"1,500,000", 1500000, true},
		{"007", 7, true},
		{"999999999999", 999999999999, true},
		{"1000000000000", 0, false},
		{"-1", 0, false},
		{"0", 0, false},
		{"000", 0, false},
		{"abc", 0, false},
		{"12a", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:        "Rp 0",
		999:      "Rp 999",
		1000:     "Rp 1.000",
		1500000:  "Rp 1.500.000",
		-200:     "-Rp 200",
		-1234567: "-Rp 1.234.567",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTransactionInputAmountFromJSON(t *testing.T) {
	cases := []struct {
		body string
		want int64
		err  error
	}{
		{`{"type":"expense","amount":2500}`, 2500, nil},
		{`{"type":"expense","amount":"1.500.000"}`, 1500000, nil},
		{`{"type":"expense","amount":" 750 "}`, 750, nil},
		{`{"type":"expense"}`, 0, nil},
		{`{"type":"expense","amount":"0"}`, 0, ErrInvalidAmount},
		{`{"type":"expense","amount":"12a"}`, 0, ErrInvalidAmount},
		{`{"type":"expense","amount":1.5}`, 0, ErrInvalidAmount},
	}
	for _, tc := range cases {
		var in TransactionInput
		err := json.Unmarshal([]byte(tc.body), &in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("%s: error = %v, want %v", tc.body, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.body, err)
		}
		if in.Amount != tc.want || in.Type != Expense {
			t.Errorf("%s: got %+v", tc.body, in)
		}
	}

	var in TransactionInput
	if err := json.Unmarshal([]byte(`{"amount":1,"extra":true}`), &in); err == nil {
		t.Error("unknown field accepted")
	}
}

func TestTransactionPatchAmountFromJSON(t *testing.T) {
	var p TransactionPatch
	if err := json.Unmarshal([]byte(`{"amount":"2.000","note":"x"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Amount == nil || *p.Amount != 2000 || p.Note == nil || *p.Note != "x" {
		t.Fatalf("got %+v", p)
	}

	p = TransactionPatch{}
	if err := json.Unmarshal([]byte(`{"amount":null,"note":"y"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Amount != nil {
		t.Fatalf("null amount should leave Amount nil, got %d", *p.Amount)
	}

	if err := json.Unmarshal([]byte(`{"amount":"-5"}`), &p); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("error = %v, want %v", err, ErrInvalidAmount)
	}
}
