// Package anydata loads bearing vibration records and
// turns them into training samples.
package anydata

import (
	"errors"
	"fmt"
	"sort"
)

// Fields supported by DataSet.Value.
const (
	FieldData = "data"
	FieldRUL  = "RUL"
)

var (
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidSelection = errors.New("invalid selection")
)

// A Condition selects bearings by name.
type Condition []string

// An Entry is the value of a field for one bearing.
type Entry struct {
	Name string

	// Cycles is set for FieldData. It is shaped (cycles,
	// samples, channels), in recording order.
	Cycles [][][]float64

	// RUL is set for FieldRUL. It is the remaining life, in
	// cycles, at the end of the recording.
	RUL float64
}

// A DataSet provides fields of named bearings.
type DataSet interface {
	// Value returns one entry per selected bearing, in the
	// order of the condition.
	//
	// An empty condition or an unknown name results in an
	// error wrapping ErrInvalidSelection.
	Value(field string, cond Condition) ([]Entry, error)
}

// A Bearing is the full record of one bearing.
type Bearing struct {
	Cycles [][][]float64
	RUL    float64
}

// Memory is a DataSet stored in memory.
type Memory map[string]*Bearing

// Names returns the sorted names of every bearing.
func (m Memory) Names() Condition {
	var res Condition
	for name := range m {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Value looks up a field for the selected bearings.
func (m Memory) Value(field string, cond Condition) ([]Entry, error) {
	if field != FieldData && field != FieldRUL {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if len(cond) == 0 {
		return nil, fmt.Errorf("%w: no bearings selected", ErrInvalidSelection)
	}
	res := make([]Entry, 0, len(cond))
	for _, name := range cond {
		b, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("%w: no bearing named %q", ErrInvalidSelection, name)
		}
		entry := Entry{Name: name}
		if field == FieldData {
			entry.Cycles = b.Cycles
		} else {
			entry.RUL = b.RUL
		}
		res = append(res, entry)
	}
	return res, nil
}
