package util

import (
	"sync"
	"testing"
	"time"
)

func TestMockCrossFunction_BasicFunctionality(t *testing.T) {
	t.Run("NewMockCrossFunction initializes correctly", func(t *testing.T) {
		initialTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		mock := NewMockCrossFunction(initialTime)

		if mock.mockTime != initialTime {
			t.Errorf("Expected mockTime %v, got %v", initialTime, mock.mockTime)
		}

		if mock.acceleration != 10 {
			t.Errorf("Expected acceleration 10, got %d", mock.acceleration)
		}
	})
}

func TestMockCrossFunction_NowIsFrozen(t *testing.T) {
	initialTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	mock := NewMockCrossFunction(initialTime)

	time.Sleep(10 * time.Millisecond)
	if got := mock.Now(); !got.Equal(initialTime) {
		t.Errorf("Expected Now() to stay at %v, got %v", initialTime, got)
	}
}

func TestMockCrossFunction_AdvanceAndSet(t *testing.T) {
	initialTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	mock := NewMockCrossFunction(initialTime)

	mock.AdvanceTime(125 * time.Second)
	if got := mock.Now().Sub(initialTime); got != 125*time.Second {
		t.Errorf("Expected 125s after AdvanceTime, got %v", got)
	}

	newTime := time.Date(2025, 6, 15, 15, 30, 0, 0, time.UTC)
	mock.SetTime(newTime)
	if got := mock.Now(); !got.Equal(newTime) {
		t.Errorf("Expected %v after SetTime, got %v", newTime, got)
	}
}

func TestMockCrossFunction_Sleep(t *testing.T) {
	t.Run("Sleep() uses 10x acceleration and moves the clock", func(t *testing.T) {
		initialTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		mock := NewMockCrossFunction(initialTime)

		start := time.Now()
		mock.Sleep(500 * time.Millisecond)
		elapsed := time.Since(start)

		if elapsed < 50*time.Millisecond || elapsed > 400*time.Millisecond {
			t.Errorf("Sleep(500ms): expected real time ~50ms, got %v", elapsed)
		}
		if got := mock.Now().Sub(initialTime); got != 500*time.Millisecond {
			t.Errorf("Expected clock to move 500ms, got %v", got)
		}
	})
}

func TestMockCrossFunction_ConcurrentAccess(t *testing.T) {
	mock := NewMockCrossFunction(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			mock.AdvanceTime(time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = mock.Now()
		}()
	}
	wg.Wait()

	if got := mock.Now().Sub(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)); got != 10*time.Second {
		t.Errorf("Expected 10s after concurrent advances, got %v", got)
	}
}

func TestNewCrossFunctionUsesWallClock(t *testing.T) {
	cf := NewCrossFunction()
	before := time.Now()
	now := cf.Now()
	if now.Before(before) || now.Sub(before) > time.Second {
		t.Errorf("Expected wall clock time near %v, got %v", before, now)
	}
}
