package pipeline

import (
	"errors"
	"testing"
	"time"
)

func TestLatestCache_NotReadyBeforeFirstStore(t *testing.T) {
	c := newLatestCache[int]()

	if _, err := c.load(10 * time.Millisecond); !errors.Is(err, ErrNotReady) {
		t.Errorf("load on empty cache = %v, want ErrNotReady", err)
	}
}

func TestLatestCache_StoreThenLoad(t *testing.T) {
	c := newLatestCache[int]()

	if !c.tryStore(42) {
		t.Fatal("tryStore on uncontended cache failed")
	}

	v, err := c.load(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != 42 {
		t.Errorf("load = %d, want 42", v)
	}
}

func TestLatestCache_Overwrite(t *testing.T) {
	c := newLatestCache[int]()

	for i := 1; i <= 5; i++ {
		c.tryStore(i)
	}

	v, err := c.load(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != 5 {
		t.Errorf("load = %d, want latest value 5", v)
	}
}

func TestLatestCache_WriterSkipsOnContention(t *testing.T) {
	c := newLatestCache[int]()
	c.tryStore(1)

	// Hold the slot.
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	start := time.Now()
	if c.tryStore(2) {
		t.Error("tryStore on held cache succeeded, want silent skip")
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("tryStore blocked for %v, want immediate return", elapsed)
	}
}

func TestLatestCache_ReaderTimesOutOnContention(t *testing.T) {
	c := newLatestCache[int]()
	c.tryStore(1)

	// Hold the slot past the reader's bounded wait.
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	start := time.Now()
	_, err := c.load(20 * time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("load on held cache = %v, want ErrTimeout", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("load blocked for %v, want bounded wait", elapsed)
	}
}

func TestLatestCache_TimeoutDistinctFromNotReady(t *testing.T) {
	if errors.Is(ErrTimeout, ErrNotReady) || errors.Is(ErrNotReady, ErrTimeout) {
		t.Error("ErrTimeout and ErrNotReady must be distinguishable")
	}
}
