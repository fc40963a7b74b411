// Package test provides assertion helpers shared by the test suites.
package test

import (
	"reflect"
	"testing"
)

// Assert fails the test if result is false.
func Assert(t testing.TB, result bool, message string) {
	t.Helper()
	if !result {
		t.Fatalf("assertion failed: %s", message)
	}
}

// AssertEquals fails the test if actual != expected.
func AssertEquals(t testing.TB, actual interface{}, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// AssertDeepEquals fails the test if actual and expected are not deeply
// equal.
func AssertDeepEquals(t testing.TB, actual interface{}, expected interface{}) {
	t.Helper()
	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected %#v, got %#v", expected, actual)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil: %s", message)
	}
}

// AssertNotError fails the test if err is not nil.
func AssertNotError(t testing.TB, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", message, err)
	}
}
