package tokens

import "testing"

func TestCountHeuristicFallback(t *testing.T) {
	var c *Counter
	if got := c.Count("12345678"); got != 2 {
		t.Errorf("nil counter heuristic = %d, want 2", got)
	}

	c = &Counter{}
	if got := c.Count(""); got != 0 {
		t.Errorf("empty string = %d, want 0", got)
	}
	if got := c.Count("abcdefgh"); got != 2 {
		t.Errorf("heuristic = %d, want 2", got)
	}
}
