package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwraps(t *testing.T) {
	t.Parallel()
	base := New(IllegalMove, "card not in hand")
	wrapped := fmt.Errorf("routing action: %w", base)

	if got := KindOf(wrapped); got != IllegalMove {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, IllegalMove)
	}
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	t.Parallel()
	if got := KindOf(errors.New("boom")); got != Unknown {
		t.Errorf("KindOf(plain error) = %s, want %s", got, Unknown)
	}
}

func TestClassOf(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind Kind
		want Class
	}{
		{IllegalMove, ClassClientFault},
		{RoomFull, ClassResourceLimit},
		{Kind("SOMETHING_NEW"), ClassUnknown},
	}
	for _, c := range cases {
		if got := ClassOf(c.kind); got != c.want {
			t.Errorf("ClassOf(%s) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("store unreachable")
	err := Wrap(Busy, "rate limiter degraded", cause)
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the cause for errors.Is")
	}
}
