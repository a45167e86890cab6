package util

import (
	"sync"
	"time"

	"github.com/devlibx/gox-base/v2"
)

// MockCrossFunction provides a controllable time service for testing. Now only
// moves when the test moves it; Sleep is shortened by Acceleration.
type MockCrossFunction struct {
	gox.CrossFunction
	mockTime     time.Time
	acceleration int
	mutex        sync.RWMutex
}

func NewMockCrossFunction(initialTime time.Time) *MockCrossFunction {
	return &MockCrossFunction{
		CrossFunction: gox.NewNoOpCrossFunction(),
		mockTime:      initialTime,
		acceleration:  10,
	}
}

func (m *MockCrossFunction) Now() time.Time {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.mockTime
}

func (m *MockCrossFunction) SetTime(t time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mockTime = t
}

func (m *MockCrossFunction) AdvanceTime(duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mockTime = m.mockTime.Add(duration)
}

// Sleep advances the mock clock by d and sleeps d/acceleration of real time.
func (m *MockCrossFunction) Sleep(d time.Duration) {
	m.AdvanceTime(d)
	time.Sleep(d / time.Duration(m.acceleration))
}

// realCrossFunction is the production time service.
type realCrossFunction struct {
	gox.CrossFunction
}

// NewCrossFunction returns a CrossFunction on the wall clock.
func NewCrossFunction() gox.CrossFunction {
	return &realCrossFunction{CrossFunction: gox.NewNoOpCrossFunction()}
}

func (r *realCrossFunction) Now() time.Time {
	return time.Now()
}

func (r *realCrossFunction) Sleep(d time.Duration) {
	time.Sleep(d)
}
