package bind

import (
	"errors"
	"fmt"
	"testing"
)

func TestBindFailureIs(t *testing.T) {
	inner := failure(AddressInUse, opBind, "127.0.0.1:80", errors.New("bind: address already in use"))
	outer := failure(NoBindableAddress, "", ":80", inner)
	wrapped := fmt.Errorf("starting listener: %w", outer)

	testCases := []struct {
		name     string
		target   Kind
		expected bool
	}{
		{name: "Outer kind", target: NoBindableAddress, expected: true},
		{name: "Inner kind", target: AddressInUse, expected: true},
		{name: "Unrelated kind", target: PermissionDenied, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errors.Is(wrapped, tc.target); got != tc.expected {
				t.Errorf("Expected errors.Is(err, %v) to be %v, got %v instead", tc.target, tc.expected, got)
			}
		})
	}

	if kind := KindOf(wrapped); kind != AddressInUse {
		t.Errorf("Expected KindOf to return the innermost kind, got %v instead", kind)
	}
	if kind := KindOf(errors.New("plain")); kind != 0 {
		t.Errorf("Expected KindOf of a plain error to be 0, got %v instead", kind)
	}
}

func TestBindFailureError(t *testing.T) {
	f := failure(ListenFailed, opListen, "[::]:8080", errors.New("listen: invalid argument"))
	expected := "listen failed (listen) [::]:8080: listen: invalid argument"
	if f.Error() != expected {
		t.Errorf("Expected %q, got %q instead", expected, f.Error())
	}

	bare := &BindFailure{Kind: InvalidArgument}
	if bare.Error() != "invalid argument" {
		t.Errorf("Expected %q, got %q instead", "invalid argument", bare.Error())
	}
}

func TestFamilyText(t *testing.T) {
	testCases := []struct {
		text     string
		expected Family
		fails    bool
	}{
		{text: "", expected: FamilyAny},
		{text: "any", expected: FamilyAny},
		{text: "ipv4", expected: FamilyIPv4},
		{text: "tcp6", expected: FamilyIPv6},
		{text: "ipx", fails: true},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			var f Family
			err := f.UnmarshalText([]byte(tc.text))
			if tc.fails {
				if err == nil {
					t.Errorf("Expected %q to be rejected", tc.text)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if f != tc.expected {
				t.Errorf("Expected %v, got %v instead", tc.expected, f)
			}
		})
	}

	if _, err := Family(9).MarshalText(); err == nil {
		t.Error("Expected MarshalText to reject an unknown family")
	}
}
