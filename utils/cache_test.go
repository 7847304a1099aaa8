package utils

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type cacheKey struct {
	id   string
	mode string
}

func TestKeyedCache_SetGetHas(t *testing.T) {
	c := NewKeyedCache[cacheKey, string]()

	if c.Has(cacheKey{"e1", "short"}) {
		t.Fatal("empty cache reports key present")
	}

	c.Set(cacheKey{"e1", "short"}, "one")
	c.Set(cacheKey{"e1", "bullet"}, "two")

	got, ok := c.Get(cacheKey{"e1", "short"})
	if !ok || got != "one" {
		t.Errorf("Get(e1,short) = %q, %v, want %q, true", got, ok, "one")
	}
	if _, ok := c.Get(cacheKey{"e1", "detailed"}); ok {
		t.Error("Get(e1,detailed) found an entry that was never set")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestKeyedCache_KeysAndClear(t *testing.T) {
	c := NewKeyedCache[string, int]()
	c.Set("b", 2)
	c.Set("a", 1)
	c.Set("a", 3)

	keys := c.Keys()
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if v, _ := c.Get("a"); v != 3 {
		t.Errorf("Get(a) = %d, want 3 after overwrite", v)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}
