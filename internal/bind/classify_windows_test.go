//go:build windows

package bind

import (
	"errors"
	"os"
	"testing"
)

func TestClassifyBind(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "In use", err: os.NewSyscallError("bind", wsaeaddrinuse), expected: AddressInUse},
		{name: "Access", err: os.NewSyscallError("bind", wsaeacces), expected: PermissionDenied},
		{name: "Not available", err: os.NewSyscallError("bind", wsaeaddrnotavail), expected: AddressUnavailable},
		{name: "Other", err: errors.New("boom"), expected: BindFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if kind := classifyBind(tc.err); kind != tc.expected {
				t.Errorf("Expected %v, got %v instead", tc.expected, kind)
			}
		})
	}
}
