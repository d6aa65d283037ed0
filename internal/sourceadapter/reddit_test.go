package sourceadapter

import "testing"

func TestNextSort_RotatesThroughFixedCycle(t *testing.T) {
	cases := []struct {
		current string
		attempt int
		want    string
	}{
		{"hot", 1, "new"},
		{"hot", 2, "top"},
		{"hot", 3, "rising"},
		{"hot", 4, "hot"},
		{"new", 1, "top"},
		{"rising", 1, "hot"},
	}
	for _, c := range cases {
		got := nextSort(c.current, c.attempt)
		if got != c.want {
			t.Errorf("nextSort(%q, %d) = %q, want %q", c.current, c.attempt, got, c.want)
		}
	}
}
