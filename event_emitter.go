package mediasoupclient

import (
	"encoding/json"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/go-logr/logr"
)

// IEventEmitter defines an interface of the Event-based architecture (like
// EventEmitter in JavaScript). Listeners are called synchronously, in the
// order they were registered, on the goroutine that emits.
type IEventEmitter interface {
	// On adds the listener function to the end of the listeners array for the
	// event named eventName. Arguments are aligned to the listener signature:
	// missing ones are zero values, extra ones are dropped, []byte arguments
	// are JSON decoded into non-byte parameters.
	On(eventName string, listener interface{})

	// Once adds a one-time listener function for the event named eventName.
	Once(eventName string, listener interface{})

	// Emit calls each of the listeners registered for the event named
	// eventName. Returns true if the event had listeners, false otherwise.
	Emit(eventName string, argv ...interface{}) bool

	// SafeEmit is like Emit but recovers from a panicking listener, logging
	// it, and goes on with the next listener.
	SafeEmit(eventName string, argv ...interface{}) bool

	// Off removes the specified listener from the listener array for the
	// event named eventName.
	Off(eventName string, listener interface{})

	// RemoveAllListeners removes all listeners, or those of the specified
	// eventNames.
	RemoveAllListeners(eventNames ...string)

	// ListenerCount returns the number of listeners of eventName.
	ListenerCount(eventName string) int
}

type EventEmitter struct {
	mu        sync.Mutex
	listeners map[string][]*eventListener
	logger    logr.Logger
}

func NewEventEmitter() IEventEmitter {
	return &EventEmitter{
		logger: NewLogger("EventEmitter"),
	}
}

func (e *EventEmitter) On(event string, listener interface{}) {
	e.addListener(event, listener, false)
}

func (e *EventEmitter) Once(event string, listener interface{}) {
	e.addListener(event, listener, true)
}

func (e *EventEmitter) addListener(event string, listener interface{}, once bool) {
	l, err := newEventListener(listener, once)
	if err != nil {
		panic(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*eventListener)
	}
	e.listeners[event] = append(e.listeners[event], l)
}

func (e *EventEmitter) Emit(event string, args ...interface{}) bool {
	listeners := e.snapshot(event)

	for _, listener := range listeners {
		listener.call(args)
	}
	return len(listeners) > 0
}

func (e *EventEmitter) SafeEmit(event string, args ...interface{}) bool {
	listeners := e.snapshot(event)

	for _, listener := range listeners {
		e.safeCall(event, listener, args)
	}
	return len(listeners) > 0
}

func (e *EventEmitter) safeCall(event string, listener *eventListener, args []interface{}) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(fmt.Errorf("%v", r), "emit panic", "event", event, "stack", string(debug.Stack()))
		}
	}()

	listener.call(args)
}

// snapshot returns the current listeners of event and drops the once
// listeners from the registry so concurrent emits fire them one time only.
func (e *EventEmitter) snapshot(event string) []*eventListener {
	e.mu.Lock()
	defer e.mu.Unlock()

	listeners := e.listeners[event]
	if len(listeners) == 0 {
		return nil
	}
	result := make([]*eventListener, len(listeners))
	copy(result, listeners)

	kept := listeners[:0:0]
	for _, l := range listeners {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(listeners) {
		e.listeners[event] = kept
	}

	return result
}

func (e *EventEmitter) Off(event string, listener interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listeners := e.listeners[event]
	ptr := reflect.ValueOf(listener).Pointer()

	for i, l := range listeners {
		if l.fn.Pointer() == ptr {
			kept := make([]*eventListener, 0, len(listeners)-1)
			kept = append(kept, listeners[:i]...)
			e.listeners[event] = append(kept, listeners[i+1:]...)
			break
		}
	}
}

func (e *EventEmitter) RemoveAllListeners(events ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(events) == 0 {
		e.listeners = nil
		return
	}
	for _, event := range events {
		delete(e.listeners, event)
	}
}

func (e *EventEmitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.listeners[event])
}

type eventListener struct {
	fn       reflect.Value
	argTypes []reflect.Type
	variadic bool
	once     bool
}

func newEventListener(listener interface{}, once bool) (*eventListener, error) {
	fn := reflect.ValueOf(listener)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a reflect.Func", reflect.TypeOf(listener))
	}
	fnType := fn.Type()
	argTypes := make([]reflect.Type, fnType.NumIn())

	for i := range argTypes {
		argTypes[i] = fnType.In(i)
	}

	return &eventListener{
		fn:       fn,
		argTypes: argTypes,
		variadic: fnType.IsVariadic(),
		once:     once,
	}, nil
}

func (l *eventListener) call(args []interface{}) {
	if l.variadic {
		values := make([]reflect.Value, 0, len(args))
		fixed := len(l.argTypes) - 1
		for i, arg := range args {
			var argType reflect.Type
			if i < fixed {
				argType = l.argTypes[i]
			} else {
				argType = l.argTypes[fixed].Elem()
			}
			values = append(values, convertArgument(arg, argType))
		}
		for i := len(values); i < fixed; i++ {
			values = append(values, reflect.Zero(l.argTypes[i]))
		}
		l.fn.Call(values)
		return
	}

	values := make([]reflect.Value, len(l.argTypes))

	for i, argType := range l.argTypes {
		if i < len(args) {
			values[i] = convertArgument(args[i], argType)
		} else {
			values[i] = reflect.Zero(argType)
		}
	}

	// returns are ignored
	l.fn.Call(values)
}

func convertArgument(arg interface{}, argType reflect.Type) reflect.Value {
	if arg == nil {
		return reflect.Zero(argType)
	}
	value := reflect.ValueOf(arg)

	switch {
	case value.Type() == argType, argType.Kind() == reflect.Interface:
		return value

	case isBytesType(value.Type()) && !isBytesType(argType):
		// decode raw payloads into the listener type
		ptr := reflect.New(argType)
		if err := json.Unmarshal(value.Bytes(), ptr.Interface()); err == nil {
			return ptr.Elem()
		}
		return value

	case value.Type().ConvertibleTo(argType):
		return value.Convert(argType)
	}

	return value
}

func isBytesType(tp reflect.Type) bool {
	return tp.Kind() == reflect.Slice && tp.Elem().Kind() == reflect.Uint8
}
