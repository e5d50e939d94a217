package domain

import (
	"strings"
	"testing"
)

func TestValidMessageText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"too short", "short", false},
		{"exactly ten", "abcdefghij", true},
		{"nine after trim", "  abcdefghi  ", false},
		{"padded but long enough", "   pad me out please   ", true},
		{"exactly 500", strings.Repeat("a", 500), true},
		{"501", strings.Repeat("a", 501), false},
		{"whitespace only", strings.Repeat(" ", 40), false},
		{"multibyte counted as runes", strings.Repeat("ç", 10), true},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidMessageText(tc.in); got != tc.want {
				t.Fatalf("ValidMessageText(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidUsername(t *testing.T) {
	cases := map[string]bool{
		"ab":                    false,
		"abc":                   true,
		"ab_12":                 true,
		"has space":             false,
		"dash-name":             false,
		"exactly_twenty_chars":  true,
		"twenty_one_characters": false,
		"":                      false,
		"ção":                   false,
	}
	for in, want := range cases {
		if got := ValidUsername(in); got != want {
			t.Fatalf("ValidUsername(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"ana@kala.ao":      true,
		"a.b+c@mail.co.ao": true,
		"no-at.kala.ao":    false,
		"ana@kala":         false,
		"ana @kala.ao":     false,
		"":                 false,
	}
	for in, want := range cases {
		if got := ValidEmail(in); got != want {
			t.Fatalf("ValidEmail(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidPassword(t *testing.T) {
	if ValidPassword("12345") {
		t.Fatalf("5 chars should be rejected")
	}
	if !ValidPassword("123456") {
		t.Fatalf("6 chars should be accepted")
	}
}

func TestNormalizeMessageText(t *testing.T) {
	got := NormalizeMessageText("  line one\r\nline two\rline three \n")
	want := "line one\nline two\nline three"
	if got != want {
		t.Fatalf("NormalizeMessageText = %q, want %q", got, want)
	}
}

func TestValidDisplayName(t *testing.T) {
	if !ValidDisplayName("") || !ValidDisplayName("Ana Maria") {
		t.Fatalf("short names should be accepted")
	}
	if ValidDisplayName(strings.Repeat("x", MaxDisplayLength+1)) {
		t.Fatalf("over-long names should be rejected")
	}
}

func TestValidPaymentMethod(t *testing.T) {
	for _, m := range []string{MethodMulticaixa, MethodUnitelMoney, MethodAppyPay} {
		if !ValidPaymentMethod(m) {
			t.Fatalf("%q should be accepted", m)
		}
	}
	if ValidPaymentMethod("paypal") {
		t.Fatalf("unknown method accepted")
	}
}
