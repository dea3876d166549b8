package testlib

import (
	"errors"
	"testing"
)

func AssertError(t testing.TB, e error) {
	if e != nil {
		t.Fatal("assertError:", e)
	}
}

func AssertErrorIs(t testing.TB, e, target error) {
	if !errors.Is(e, target) {
		t.Fatal("assertErrorIs: got", e, "want", target)
	}
}
