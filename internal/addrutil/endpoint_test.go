package addrutil

import "testing"

func TestEndpoint_AddsDefaultPort(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"10.0.0.1":        "10.0.0.1:8889",
		"10.0.0.1:9000":   "10.0.0.1:9000",
		"radio-2":         "radio-2:8889",
		":7000":           ":7000",
		"[2001:db8::1]":   "[2001:db8::1]:8889",
		"2001:db8::1":     "[2001:db8::1]:8889",
		"[2001:db8::1]:5": "[2001:db8::1]:5",
	}
	for in, want := range cases {
		got, err := Endpoint(in, 8889)
		if err != nil {
			t.Fatalf("Endpoint(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Endpoint(%q)=%q want %q", in, got, want)
		}
	}
}

func TestEndpoint_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Endpoint("  ", 8889); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := Endpoint("10.0.0.1:notaport", 8889); err == nil {
		t.Fatal("expected error for bad port")
	}
	if _, err := Endpoint("10.0.0.1", 0); err == nil {
		t.Fatal("expected error without default port")
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	if got := Host("10.0.0.1:8889"); got != "10.0.0.1" {
		t.Fatalf("host=%q", got)
	}
	if got := Host("[2001:db8::1]"); got != "2001:db8::1" {
		t.Fatalf("host=%q", got)
	}
	if got := Host("radio-2"); got != "radio-2" {
		t.Fatalf("host=%q", got)
	}
}
