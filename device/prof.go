package device

import (
	"bytes"
	"time"

	"github.com/google/pprof/profile"
)

// ProfSample is one in-kernel stack sample: a call stack (outermost frame
// first) with a sample count, the shape sched's tick handler would hand to
// a D_PROF profiling device if this tree wired a real sampling timer.
type ProfSample struct {
	Stack []string
	Count int64
}

// EncodeProfile builds a pprof profile.Profile from samples and serializes
// it to the gzip'd protobuf wire format, matching the SPEC_FULL §B sketch
// of a D_PROF char device that hands back profile.proto bytes on read.
// Grounded on github.com/google/pprof/profile's documented
// construct-then-Write pattern (there is no sampling runtime in this
// simulation, so samples are supplied by the caller rather than collected
// from a real timer interrupt).
func EncodeProfile(samples []ProfSample) ([]byte, error) {
	p := &profile.Profile{
		SampleType:    []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType:    &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:        int64(time.Millisecond),
		TimeNanos:     0,
	}

	funcs := map[string]*profile.Function{}
	locs := map[string]*profile.Location{}
	nextID := uint64(1)

	locFor := func(name string) *profile.Location {
		if l, ok := locs[name]; ok {
			return l
		}
		fn, ok := funcs[name]
		if !ok {
			fn = &profile.Function{ID: nextID, Name: name}
			nextID++
			funcs[name] = fn
			p.Function = append(p.Function, fn)
		}
		loc := &profile.Location{
			ID:   nextID,
			Line: []profile.Line{{Function: fn}},
		}
		nextID++
		locs[name] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	for _, s := range samples {
		var locations []*profile.Location
		for i := len(s.Stack) - 1; i >= 0; i-- {
			locations = append(locations, locFor(s.Stack[i]))
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: locations,
			Value:    []int64{s.Count},
		})
	}

	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
