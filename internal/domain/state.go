// Package domain contains pure, dependency-free domain models, types and
// computations for evaluating sleep-stage classifiers.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Key names a State entry holding a value of type T.
type Key[T any] struct{ name string }

// NewKey returns a key for entries defined outside this package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Keys of the voter pipeline.
var (
	// KeySubject is the subject whose bundle is being voted on.
	KeySubject = Key[string]{"subject"}

	// KeyBundle holds the base models' records for that subject.
	KeyBundle = Key[[]ResultRecord]{"bundle"}

	// KeyEnsembles accumulates one record per voter that has run.
	KeyEnsembles = Key[[]ResultRecord]{"ensembles"}

	// KeyRunID correlates a subject's pipeline run with logs and spans.
	KeyRunID = Key[string]{"execution.run_id"}

	// KeyOperation is the report operation driving the run.
	KeyOperation = Key[string]{"execution.operation"}
)

// cloneValue returns a copy of value that shares no mutable memory with it.
// Record slices, the common case, are cloned directly; anything else goes
// through reflection. Nil slices, maps and pointers stay nil so optional
// record fields keep their absence.
func cloneValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string, int, float64, bool, time.Time:
		return v
	case ResultRecord:
		return v.Clone()
	case []ResultRecord:
		if v == nil {
			return v
		}
		out := make([]ResultRecord, len(v))
		for i, rec := range v {
			out[i] = rec.Clone()
		}
		return out
	}
	return cloneReflect(reflect.ValueOf(value)).Interface()
}

func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Elem().Type())
		out.Elem().Set(cloneReflect(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range v.NumField() {
			if out.Field(i).CanSet() {
				out.Field(i).Set(cloneReflect(v.Field(i)))
			}
		}
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		inner := cloneReflect(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out
	default:
		return v
	}
}

// State is the immutable value a voter pipeline threads from unit to unit.
// Every update returns a new State and every read returns a copy, so a
// State can be shared between goroutines and a failing voter cannot
// corrupt the bundle seen by the next one.
type State struct {
	data map[string]any
}

// NewState returns an empty State.
func NewState() State {
	return State{data: make(map[string]any)}
}

// Get returns a copy of the value stored under key. ok is false when the
// key is absent or holds a value of another type.
//
//	bundle, ok := Get(state, KeyBundle)
func Get[T any](s State, key Key[T]) (T, bool) {
	value, exists := s.data[key.name]
	if !exists {
		var zero T
		return zero, false
	}
	val, ok := cloneValue(value).(T)
	return val, ok
}

// With returns a State in which key holds a copy of value.
func With[T any](s State, key Key[T], value T) State {
	data := maps.Clone(s.data)
	data[key.name] = cloneValue(value)
	return State{data: data}
}

// WithMultiple applies several untyped updates with a single clone of the
// underlying map.
func (s State) WithMultiple(updates map[string]any) State {
	data := maps.Clone(s.data)
	for k, v := range updates {
		data[k] = cloneValue(v)
	}
	return State{data: data}
}

// Keys returns the stored key names in ascending order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// ExecutionContext identifies one subject's pipeline run.
type ExecutionContext struct {
	RunID     string
	Operation string
	Subject   string
}

// WithExecutionContext stores ctx under KeyRunID, KeyOperation and
// KeySubject.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyRunID.name:     ctx.RunID,
		KeyOperation.name: ctx.Operation,
		KeySubject.name:   ctx.Subject,
	})
}

// GetExecutionContext reads back what WithExecutionContext stored. ok is
// false unless all three fields are present.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	runID, okRun := Get(s, KeyRunID)
	operation, okOp := Get(s, KeyOperation)
	subject, okSubject := Get(s, KeySubject)
	if !okRun || !okOp || !okSubject {
		return ExecutionContext{}, false
	}
	return ExecutionContext{RunID: runID, Operation: operation, Subject: subject}, true
}

// AppendEnsemble returns a new State with rec appended to KeyEnsembles.
func (s State) AppendEnsemble(rec ResultRecord) State {
	existing, _ := Get(s, KeyEnsembles)
	return With(s, KeyEnsembles, append(existing, rec))
}

// Bundle returns the subject's base records, failing with a StateError
// when the key is absent or empty.
func (s State) Bundle() ([]ResultRecord, error) {
	bundle, ok := Get(s, KeyBundle)
	if !ok {
		return nil, NewStateError(KeyBundle.name, "Get", ErrKeyNotFound)
	}
	if len(bundle) == 0 {
		return nil, NewStateError(KeyBundle.name, "Get", ErrEmptyValue)
	}
	return bundle, nil
}
