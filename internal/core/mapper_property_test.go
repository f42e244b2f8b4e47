package core

import (
	"testing"

	"github.com/valter-silva-au/ios-scale/pkg/models"
	"pgregory.net/rapid"
)

func genModality(t *rapid.T) models.Modality {
	return rapid.SampledFrom(models.AllModalities).Draw(t, "modality")
}

// genScalarDescriptor draws a modality driven by a continuous axis.
func genScalarDescriptor(t *rapid.T) ModalityDescriptor {
	var axis []models.Modality
	for _, m := range models.AllModalities {
		if d, _ := Descriptor(m); d.Kind != KindMembership {
			axis = append(axis, m)
		}
	}
	d, _ := Descriptor(rapid.SampledFrom(axis).Draw(t, "modality"))
	return d
}

// TestProperty01_MapperValueStaysInRange verifies that no drag sequence
// moves the value outside [0, 1].
func TestProperty01_MapperValueStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genScalarDescriptor(t)
		start := rapid.Float64Range(0, 1).Draw(t, "start")
		m := NewScalarMapper(d, models.Position{Primary: start})

		deltas := rapid.SliceOfN(rapid.Float64Range(-2000, 2000), 1, 30).Draw(t, "deltas")
		for i, delta := range deltas {
			m.Drag(delta)
			if rapid.Bool().Draw(t, "endGesture") {
				m.EndDrag()
			}
			if v := m.Position().Primary; v < 0 || v > 1 {
				t.Fatalf("step %d: value %v out of range", i, v)
			}
		}
	})
}

// TestProperty02_ChunkedDragMatchesSingleDrag verifies that splitting one
// gesture's translation into chunks yields the same value as applying the
// sum at once.
func TestProperty02_ChunkedDragMatchesSingleDrag(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genScalarDescriptor(t)
		start := rapid.Float64Range(0, 1).Draw(t, "start")
		chunks := rapid.SliceOfN(rapid.Float64Range(-500, 500), 1, 20).Draw(t, "chunks")

		chunked := NewScalarMapper(d, models.Position{Primary: start})
		total := 0.0
		for _, c := range chunks {
			chunked.Drag(c)
			total += c
		}

		single := NewScalarMapper(d, models.Position{Primary: start})
		single.Drag(total)

		if diff := chunked.Position().Primary - single.Position().Primary; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("chunked %v != single %v", chunked.Position().Primary, single.Position().Primary)
		}
	})
}

// TestProperty03_BoundaryFiresOncePerCrossing verifies that a monotone drag
// past the upper bound emits exactly one boundary event.
func TestProperty03_BoundaryFiresOncePerCrossing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genScalarDescriptor(t)
		start := rapid.Float64Range(0.05, 0.95).Draw(t, "start")
		m := NewScalarMapper(d, models.Position{Primary: start})

		steps := rapid.SliceOfN(rapid.Float64Range(1, 80), 1, 40).Draw(t, "steps")
		// Enough extra travel to guarantee reaching the bound.
		steps = append(steps, d.Sensitivity*2)

		boundaries := 0
		for _, s := range steps {
			for _, e := range m.Drag(d.Sign * s) {
				if e == FeedbackBoundary {
					boundaries++
				}
			}
		}
		if m.Position().Primary != 1 {
			t.Fatalf("expected value 1, got %v", m.Position().Primary)
		}
		if boundaries != 1 {
			t.Fatalf("boundary fired %d times", boundaries)
		}
	})
}

// TestProperty04_ResetRestoresMeasurementStart verifies that Reset undoes
// any drag sequence.
func TestProperty04_ResetRestoresMeasurementStart(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genScalarDescriptor(t)
		start := d.DefaultPosition()
		vm := NewValueMapper(d, start)

		deltas := rapid.SliceOfN(rapid.Float64Range(-500, 500), 0, 10).Draw(t, "deltas")
		switch m := vm.(type) {
		case *ScalarMapper:
			for _, delta := range deltas {
				m.Drag(delta)
			}
		case *ScaledOverlapMapper:
			for _, delta := range deltas {
				m.Drag(delta)
				m.Resize(ScaleOther, delta)
			}
		}

		vm.Reset()
		got := vm.Position()
		if got.Primary != start.Primary {
			t.Fatalf("primary %v, want %v", got.Primary, start.Primary)
		}
		for k, v := range start.Secondary {
			if got.Secondary[k] != v {
				t.Fatalf("secondary %s = %v, want %v", k, got.Secondary[k], v)
			}
		}
	})
}
