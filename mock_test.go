package mediasoupclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockFunc records the calls of an event listener. Listeners may run on other
// goroutines, so calls are collected until the timeout elapses.
type MockFunc struct {
	require *require.Assertions
	calls   chan []interface{}
	results [][]interface{}
	timeout time.Duration
}

func NewMockFunc(t *testing.T) *MockFunc {
	return &MockFunc{
		require: require.New(t),
		calls:   make(chan []interface{}, 100),
		timeout: 50 * time.Millisecond,
	}
}

func (m *MockFunc) WithTimeout(timeout time.Duration) *MockFunc {
	m.timeout = timeout
	return m
}

// Fn returns a listener accepting any arguments.
func (m *MockFunc) Fn() func(...interface{}) {
	m.Reset()

	return func(args ...interface{}) {
		m.calls <- args
	}
}

// ExpectCalledWith asserts the arguments of the last call.
func (m *MockFunc) ExpectCalledWith(args ...interface{}) {
	last := m.lastCall()

	m.require.Len(last, len(args), "number of arguments")

	for i, arg := range args {
		m.require.EqualValues(arg, last[i], "argument %d", i)
	}
}

func (m *MockFunc) ExpectCalled(msgAndArgs ...interface{}) {
	m.require.NotZero(m.CalledTimes(), msgAndArgs...)
}

func (m *MockFunc) ExpectNotCalled(msgAndArgs ...interface{}) {
	m.require.Zero(m.CalledTimes(), msgAndArgs...)
}

func (m *MockFunc) ExpectCalledTimes(called int, msgAndArgs ...interface{}) {
	m.require.Equal(called, m.CalledTimes(), msgAndArgs...)
}

func (m *MockFunc) CalledTimes() int {
	m.collect()
	return len(m.results)
}

func (m *MockFunc) Reset() {
	m.calls = make(chan []interface{}, 100)
	m.results = nil
}

func (m *MockFunc) lastCall() []interface{} {
	m.collect()

	if len(m.results) == 0 {
		m.require.FailNow("fn is not called")
	}
	return m.results[len(m.results)-1]
}

// collect drains the calls made within the timeout, once.
func (m *MockFunc) collect() {
	if len(m.results) > 0 {
		return
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	for {
		select {
		case call := <-m.calls:
			m.results = append(m.results, call)
		case <-timer.C:
			return
		}
	}
}
