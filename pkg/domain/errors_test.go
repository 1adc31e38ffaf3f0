package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorStrings(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{OutOfStockError{Name: "milk"}, `"milk"`},
		{NotFoundError{Name: "gone"}, `"gone"`},
		{InvalidQuantityError{Quantity: -1}, "-1"},
		{ValidationError{Field: "product_name", Reason: "required"}, "product_name"},
	}
	for _, tc := range cases {
		if !strings.Contains(tc.err.Error(), tc.want) {
			t.Fatalf("%T error %q missing %q", tc.err, tc.err.Error(), tc.want)
		}
	}
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := PersistenceError{Op: "commit", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap to reach cause")
	}
	if !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected op in message, got %q", err.Error())
	}
}
