package assets

import (
	"errors"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache[[]byte]()

	if _, ok := c.Get("a.png"); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Set("a.png", []byte{1, 2, 3})
	got, ok := c.Get("a.png")
	if !ok || len(got) != 3 {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses, want 1/1", hits, misses)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Errorf("Stats after Clear = %d/%d", hits, misses)
	}
}

func TestCacheGetOrLoad(t *testing.T) {
	c := NewCache[int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("answer", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	errBoom := errors.New("boom")
	if _, err := c.GetOrLoad("broken", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("error = %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("failed load was cached: Len = %d", c.Len())
	}
}
