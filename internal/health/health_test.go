package health

import "testing"

func TestWarmBrowsersHeuristic(t *testing.T) {
	cases := []struct {
		size, available, want int
	}{
		{10, 10, 10},
		{10, 0, 2},
		{10, 5, 7},
		{5, 9, 5},
	}
	for _, tc := range cases {
		if got := warmBrowsers(tc.size, tc.available); got != tc.want {
			t.Errorf("warmBrowsers(%d,%d) = %d, want %d", tc.size, tc.available, got, tc.want)
		}
	}
}
