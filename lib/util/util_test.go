package util

import "testing"

func TestIn(t *testing.T) {
	if !In([]string{"30", "31"}, "31") {
		t.Errorf("expected 31 to be found")
	}

	if In(nil, "31") || In([]string{"30"}, "31") {
		t.Errorf("31 should not be found")
	}
}

func TestSameAddress(t *testing.T) {
	cases := []struct {
		a, b string
		exp  bool
	}{
		{"0xABCdef", "0xabcdef", true},
		{" 0xabc", "0xABC ", true},
		{"0xabc", "0xabd", false},
		{"", "", false},
		{"0xabc", "", false},
	}
	for _, c := range cases {
		if got := SameAddress(c.a, c.b); got != c.exp {
			t.Errorf("SameAddress(%q,%q)=%v expected:%v", c.a, c.b, got, c.exp)
		}
	}

	if Lower(" 0xAbC ") != "0xabc" {
		t.Errorf("Lower did not normalize the address")
	}
}
