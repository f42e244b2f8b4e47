package core

import (
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// AxisMapper turns a continuous 1-D drag into a value within [min, max].
// Updates are relative to the value at gesture start, so a partial drag
// never jumps the value to the pointer position.
type AxisMapper struct {
	min, max    float64
	sign        float64
	sensitivity float64

	value            float64
	gestureStart     float64
	measurementStart float64
	translation      float64
	dragging         bool

	feedback *FeedbackTracker
}

// NewAxisMapper creates an axis over [min, max] starting at initial.
// sensitivity is the drag distance for a full min->max sweep.
func NewAxisMapper(min, max, sign, sensitivity, initial float64, policy FeedbackPolicy) *AxisMapper {
	if sensitivity <= 0 {
		sensitivity = 1
	}
	if sign >= 0 {
		sign = 1
	} else {
		sign = -1
	}
	a := &AxisMapper{min: min, max: max, sign: sign, sensitivity: sensitivity}
	a.feedback = NewFeedbackTracker(policy, 0)
	a.StartMeasurement(initial)
	return a
}

// Value returns the live value.
func (a *AxisMapper) Value() float64 {
	return a.value
}

// Dragging reports whether a gesture is in progress.
func (a *AxisMapper) Dragging() bool {
	return a.dragging
}

// Begin captures the current value as the gesture origin.
func (a *AxisMapper) Begin() {
	a.gestureStart = a.value
	a.translation = 0
	a.dragging = true
}

// Update applies a raw drag delta and returns the feedback events the
// resulting change triggers. An update without Begin starts a gesture.
func (a *AxisMapper) Update(delta float64) []FeedbackEvent {
	if !a.dragging {
		a.Begin()
	}
	a.translation += delta
	span := a.max - a.min
	a.value = Clamp(a.gestureStart+a.sign*(a.translation/a.sensitivity)*span, a.min, a.max)
	return a.feedback.Observe(a.normalized(a.value))
}

// End commits the live value as-is.
func (a *AxisMapper) End() float64 {
	a.dragging = false
	a.translation = 0
	return a.value
}

// StartMeasurement sets the value a new measurement starts from. Reset
// returns to it.
func (a *AxisMapper) StartMeasurement(v float64) {
	v = Clamp(v, a.min, a.max)
	a.value = v
	a.measurementStart = v
	a.gestureStart = v
	a.translation = 0
	a.dragging = false
	a.feedback.Reset(a.normalized(v))
}

// Reset restores the value recorded at the start of the current measurement.
func (a *AxisMapper) Reset() {
	a.value = a.measurementStart
	a.gestureStart = a.value
	a.translation = 0
	a.dragging = false
	a.feedback.Reset(a.normalized(a.value))
}

func (a *AxisMapper) normalized(v float64) float64 {
	span := a.max - a.min
	if span <= 0 {
		return 0
	}
	return (v - a.min) / span
}

// ValueMapper is the live-value state of one capture flow.
type ValueMapper interface {
	Descriptor() ModalityDescriptor
	// Position returns the current value(s) in persisted form.
	Position() models.Position
	// StartMeasurement positions the mapper for a new measurement.
	StartMeasurement(p models.Position)
	// Reset restores the position the current measurement started at.
	Reset()
}

// NewValueMapper returns the mapper variant for the descriptor's kind.
func NewValueMapper(d ModalityDescriptor, start models.Position) ValueMapper {
	switch d.Kind {
	case KindScaled:
		return NewScaledOverlapMapper(d, start)
	case KindMembership:
		return NewMembershipMapper(d, DefaultMembershipLayout(), start)
	default:
		return NewScalarMapper(d, start)
	}
}

// ScalarMapper drives the single primary value of a scalar modality.
type ScalarMapper struct {
	desc    ModalityDescriptor
	primary *AxisMapper
}

// NewScalarMapper creates a ScalarMapper starting at start.Primary.
func NewScalarMapper(d ModalityDescriptor, start models.Position) *ScalarMapper {
	policy := DefaultFeedbackPolicy()
	if d.SuccessThreshold > 0 {
		policy.SuccessThreshold = d.SuccessThreshold
	}
	return &ScalarMapper{
		desc:    d,
		primary: NewAxisMapper(0, 1, d.Sign, d.Sensitivity, start.Primary, policy),
	}
}

func (m *ScalarMapper) Descriptor() ModalityDescriptor { return m.desc }

// Axis exposes the primary axis for gesture input.
func (m *ScalarMapper) Axis() *AxisMapper { return m.primary }

// Drag applies a horizontal drag delta.
func (m *ScalarMapper) Drag(delta float64) []FeedbackEvent {
	return m.primary.Update(delta)
}

// EndDrag commits the current gesture.
func (m *ScalarMapper) EndDrag() {
	m.primary.End()
}

func (m *ScalarMapper) Position() models.Position {
	return models.Position{Primary: m.primary.Value()}
}

func (m *ScalarMapper) StartMeasurement(p models.Position) {
	m.primary.StartMeasurement(p.Primary)
}

func (m *ScalarMapper) Reset() {
	m.primary.Reset()
}

// ScaleTarget selects which circle a scale gesture resizes.
type ScaleTarget int

const (
	ScaleSelf ScaleTarget = iota
	ScaleOther
)

// ScaledOverlapMapper drives the overlap value plus the two circle-size
// multipliers of the advanced overlap modality.
type ScaledOverlapMapper struct {
	desc       ModalityDescriptor
	primary    *AxisMapper
	selfScale  *AxisMapper
	otherScale *AxisMapper
}

// NewScaledOverlapMapper creates the mapper starting at start.
func NewScaledOverlapMapper(d ModalityDescriptor, start models.Position) *ScaledOverlapMapper {
	policy := DefaultFeedbackPolicy()
	if d.SuccessThreshold > 0 {
		policy.SuccessThreshold = d.SuccessThreshold
	}
	// Scales have no convergence target.
	scalePolicy := DefaultFeedbackPolicy()
	scalePolicy.SuccessThreshold = 2
	m := &ScaledOverlapMapper{
		desc:       d,
		primary:    NewAxisMapper(0, 1, d.Sign, d.Sensitivity, d.Default, policy),
		selfScale:  NewAxisMapper(ScaleMin, ScaleMax, 1, scaleSensitivity, ScaleDefault, scalePolicy),
		otherScale: NewAxisMapper(ScaleMin, ScaleMax, 1, scaleSensitivity, ScaleDefault, scalePolicy),
	}
	m.StartMeasurement(start)
	return m
}

func (m *ScaledOverlapMapper) Descriptor() ModalityDescriptor { return m.desc }

// Axis exposes the overlap axis for gesture input.
func (m *ScaledOverlapMapper) Axis() *AxisMapper { return m.primary }

// Drag applies a horizontal drag delta to the overlap value.
func (m *ScaledOverlapMapper) Drag(delta float64) []FeedbackEvent {
	return m.primary.Update(delta)
}

// EndDrag commits the current overlap gesture.
func (m *ScaledOverlapMapper) EndDrag() {
	m.primary.End()
}

// ScaleAxis returns the axis resizing the target circle.
func (m *ScaledOverlapMapper) ScaleAxis(target ScaleTarget) *AxisMapper {
	if target == ScaleOther {
		return m.otherScale
	}
	return m.selfScale
}

// Resize applies a vertical drag delta to the target circle's multiplier.
func (m *ScaledOverlapMapper) Resize(target ScaleTarget, delta float64) []FeedbackEvent {
	return m.ScaleAxis(target).Update(delta)
}

// EndResize commits the target circle's gesture.
func (m *ScaledOverlapMapper) EndResize(target ScaleTarget) {
	m.ScaleAxis(target).End()
}

func (m *ScaledOverlapMapper) Position() models.Position {
	return models.Position{
		Primary: m.primary.Value(),
		Secondary: map[string]float64{
			models.SecondarySelfScale:  m.selfScale.Value(),
			models.SecondaryOtherScale: m.otherScale.Value(),
		},
	}
}

func (m *ScaledOverlapMapper) StartMeasurement(p models.Position) {
	m.primary.StartMeasurement(p.Primary)
	m.selfScale.StartMeasurement(secondaryOr(p, models.SecondarySelfScale, ScaleDefault))
	m.otherScale.StartMeasurement(secondaryOr(p, models.SecondaryOtherScale, ScaleDefault))
}

func (m *ScaledOverlapMapper) Reset() {
	m.primary.Reset()
	m.selfScale.Reset()
	m.otherScale.Reset()
}

func secondaryOr(p models.Position, key string, fallback float64) float64 {
	if v, ok := p.Secondary[key]; ok {
		return v
	}
	return fallback
}

// Point is a position in the capture canvas.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned region; its bounds are inclusive.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether p lies within r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// MembershipEntity identifies one of the two draggable entities.
type MembershipEntity int

const (
	EntitySelf MembershipEntity = iota
	EntityOther
)

// MembershipLayout places the set region and the resting points of the
// entities inside and outside of it.
type MembershipLayout struct {
	Set          Rect
	SelfInside   Point
	SelfOutside  Point
	OtherInside  Point
	OtherOutside Point
}

// DefaultMembershipLayout returns a 400x400 canvas with the set centered.
func DefaultMembershipLayout() MembershipLayout {
	return MembershipLayout{
		Set:          Rect{MinX: 100, MinY: 100, MaxX: 300, MaxY: 300},
		SelfInside:   Point{X: 170, Y: 200},
		SelfOutside:  Point{X: 40, Y: 200},
		OtherInside:  Point{X: 230, Y: 200},
		OtherOutside: Point{X: 360, Y: 200},
	}
}

type membershipState struct {
	pos   [2]Point
	inSet [2]bool
}

// MembershipMapper tracks two draggable entities and whether each lies in
// the set region. Containment is evaluated on every drag update; the
// boolean only changes when the containment state flips.
type MembershipMapper struct {
	desc   ModalityDescriptor
	layout MembershipLayout
	cur    membershipState
	start  membershipState
}

// NewMembershipMapper creates the mapper with entities placed according to
// start's booleans.
func NewMembershipMapper(d ModalityDescriptor, layout MembershipLayout, start models.Position) *MembershipMapper {
	m := &MembershipMapper{desc: d, layout: layout}
	m.StartMeasurement(start)
	return m
}

func (m *MembershipMapper) Descriptor() ModalityDescriptor { return m.desc }

// Location returns the current point of entity e.
func (m *MembershipMapper) Location(e MembershipEntity) Point {
	return m.cur.pos[e]
}

// InSet reports whether entity e is currently inside the set.
func (m *MembershipMapper) InSet(e MembershipEntity) bool {
	return m.cur.inSet[e]
}

// Drag moves entity e by (dx, dy). It returns whether the containment state
// flipped and the feedback events to fire.
func (m *MembershipMapper) Drag(e MembershipEntity, dx, dy float64) (bool, []FeedbackEvent) {
	p := m.cur.pos[e]
	p.X += dx
	p.Y += dy
	m.cur.pos[e] = p

	inside := m.layout.Set.Contains(p)
	if inside == m.cur.inSet[e] {
		return false, nil
	}
	m.cur.inSet[e] = inside
	events := []FeedbackEvent{FeedbackMedium}
	if m.cur.inSet[EntitySelf] && m.cur.inSet[EntityOther] {
		events = append(events, FeedbackSuccess)
	}
	return true, events
}

func (m *MembershipMapper) Position() models.Position {
	selfIn, otherIn := m.cur.inSet[EntitySelf], m.cur.inSet[EntityOther]
	return models.Position{
		Primary: MembershipPrimary(selfIn, otherIn),
		Secondary: map[string]float64{
			models.SecondarySelfInSet:  boolValue(selfIn),
			models.SecondaryOtherInSet: boolValue(otherIn),
		},
	}
}

func (m *MembershipMapper) StartMeasurement(p models.Position) {
	selfIn := secondaryOr(p, models.SecondarySelfInSet, 0) >= 0.5
	otherIn := secondaryOr(p, models.SecondaryOtherInSet, 0) >= 0.5
	var st membershipState
	st.inSet = [2]bool{selfIn, otherIn}
	st.pos[EntitySelf] = m.layout.SelfOutside
	if selfIn {
		st.pos[EntitySelf] = m.layout.SelfInside
	}
	st.pos[EntityOther] = m.layout.OtherOutside
	if otherIn {
		st.pos[EntityOther] = m.layout.OtherInside
	}
	m.cur = st
	m.start = st
}

func (m *MembershipMapper) Reset() {
	m.cur = m.start
}
