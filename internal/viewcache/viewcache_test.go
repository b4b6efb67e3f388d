package viewcache

import "testing"

func TestSetGetInvalidate(t *testing.T) {
	c := New()

	if _, ok := c.Get("jobs"); ok {
		t.Error("empty cache should miss")
	}

	c.Set("jobs", []string{"a", "b"})
	v, ok := c.Get("jobs")
	if !ok {
		t.Fatal("expected cache hit after Set")
	}
	if got := v.([]string); len(got) != 2 {
		t.Errorf("got %v", got)
	}

	c.Invalidate("jobs")
	if _, ok := c.Get("jobs"); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestInvalidateIsScopedToView(t *testing.T) {
	c := New()
	c.Set("jobs", 1)
	c.Set("models", 2)

	c.Invalidate("jobs")

	if _, ok := c.Get("models"); !ok {
		t.Error("invalidating jobs must not evict models")
	}
}
