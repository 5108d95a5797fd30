package abi

import (
	"testing"

	"ember/defs"
)

func TestDispatchReturnsENOSYSForUnregisteredCall(t *testing.T) {
	if got := Dispatch(999999, nil, Args{}); got != int64(-defs.ENOSYS) {
		t.Fatalf("Dispatch(unregistered) = %d, want %d", got, -defs.ENOSYS)
	}
}

func TestRegisterInstallsHandlerDispatchInvokes(t *testing.T) {
	const nr = 123456
	Register(nr, func(ctx interface{}, a Args) int64 {
		return int64(a[0]) + int64(a[1])
	})
	got := Dispatch(nr, nil, Args{2, 3})
	if got != 5 {
		t.Fatalf("Dispatch(nr) = %d, want 5", got)
	}
}

func TestErrnoWidensErrTDirectly(t *testing.T) {
	if got := Errno(-defs.EINVAL); got != int64(-defs.EINVAL) {
		t.Fatalf("Errno(-EINVAL) = %d, want %d", got, -defs.EINVAL)
	}
}
