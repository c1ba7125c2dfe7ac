// Package asc decodes vehicle-bus trace (.asc) logs into typed samples and derives
// per-field change intervals and duration verdicts from them.
package asc

import (
	"errors"
	"fmt"
)

// DefaultMarker identifies the trace lines carrying the crash-record payload.
const DefaultMarker = "SRSBackboneSignalIPdu02"

// FieldPosition maps a named field to the whitespace-separated token it is read from.
// A zero Mask keeps the whole token value; otherwise the value is (token >> Shift) & Mask.
type FieldPosition struct {
	Name  string `json:"name"`
	Token int    `json:"token"`
	Mask  uint64 `json:"mask,omitempty"`
	Shift uint   `json:"shift,omitempty"`
}

func (fp FieldPosition) extract(raw uint64) uint64 {
	if fp.Mask == 0 {
		return raw
	}
	return (raw >> fp.Shift) & fp.Mask
}

// Layout describes which lines to decode and where each field lives within them.
type Layout struct {
	Marker string          `json:"marker"`
	Fields []FieldPosition `json:"fields"`
}

// DefaultLayout is the shipped crash-record layout.
func DefaultLayout() Layout {
	return Layout{
		Marker: DefaultMarker,
		Fields: []FieldPosition{
			{Name: "RecOfImpctCrashFrnt", Token: 18},
			{Name: "RecOfImpctCrashRe", Token: 20},
			{Name: "RecOfImpctCrashSideLe", Token: 19},
			{Name: "RecOfImpctCrashSideRi", Token: 19},
			{Name: "RecOfImpctCrashRollovr", Token: 19},
			{Name: "RecOfImpctCrashState", Token: 19},
		},
	}
}

// Validate checks the layout for errors.
func (l Layout) Validate() error {
	if l.Marker == "" {
		return errors.New("record marker cannot be empty")
	}
	if len(l.Fields) == 0 {
		return errors.New("layout has no fields")
	}
	seen := make(map[string]struct{}, len(l.Fields))
	for _, f := range l.Fields {
		if f.Name == "" {
			return errors.New("field name cannot be empty")
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		// token 0 is always the timestamp
		if f.Token < 1 {
			return fmt.Errorf("field %q: token index must be >= 1, got %d", f.Name, f.Token)
		}
		if f.Shift > 63 {
			return fmt.Errorf("field %q: shift %d out of range", f.Name, f.Shift)
		}
	}
	return nil
}

// FieldNames returns the field names in layout order.
func (l Layout) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

func (l Layout) maxToken() int {
	mx := 0
	for _, f := range l.Fields {
		if f.Token > mx {
			mx = f.Token
		}
	}
	return mx
}
