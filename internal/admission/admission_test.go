package admission

import (
	"sync"
	"testing"
)

func TestToggle(t *testing.T) {
	g := New()
	if g.Locked() {
		t.Fatal("new gate must be open")
	}
	if !g.Toggle() || !g.Locked() {
		t.Fatal("first toggle should lock")
	}
	if g.Toggle() || g.Locked() {
		t.Fatal("second toggle should unlock")
	}
}

func TestToggleConcurrentEvenCountEndsOpen(t *testing.T) {
	g := New()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Toggle()
		}()
	}
	wg.Wait()

	if g.Locked() {
		t.Fatal("an even number of toggles must leave the gate open")
	}
}
