// services/hal/internal/halcore/types_test.go

package halcore

import "testing"

func TestEdgeString(t *testing.T) {
	if EdgeRising.String() != "rising" ||
		EdgeFalling.String() != "falling" ||
		EdgeBoth.String() != "both" ||
		EdgeNone.String() != "none" {
		t.Fatal("Edge.String mapping incorrect")
	}
}

func TestScale(t *testing.T) {
	cases := []struct {
		duty uint8
		top  uint32
		want uint32
	}{
		{0, 4095, 0},
		{255, 4095, 4095},
		{128, 4095, 2055},
		{255, 65535, 65535},
		{1, 255, 1},
	}
	for _, c := range cases {
		if got := Scale(c.duty, c.top); got != c.want {
			t.Fatalf("Scale(%d,%d)=%d want %d", c.duty, c.top, got, c.want)
		}
	}
}
