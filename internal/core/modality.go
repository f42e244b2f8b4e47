package core

import (
	"fmt"

	"github.com/valter-silva-au/ios-scale/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ModalityKind groups modalities by the shape of the values they capture.
type ModalityKind int

const (
	// KindScalar captures one primary value.
	KindScalar ModalityKind = iota
	// KindScaled captures a primary value plus two circle-size multipliers.
	KindScaled
	// KindMembership captures two in/out-of-set booleans.
	KindMembership
)

// Scale multiplier bounds for KindScaled modalities.
const (
	ScaleMin         = 0.2
	ScaleMax         = 2.0
	ScaleDefault     = 1.0
	ScaleRandomMin   = 0.6
	ScaleRandomMax   = 1.4
	scaleSensitivity = 400.0
)

// ValueLabel maps the lower bound of a value band to its description.
type ValueLabel struct {
	From  float64
	Label string
}

// ModalityDescriptor parameterizes the generic mapper and reset policy for
// one modality.
type ModalityDescriptor struct {
	Modality    models.Modality
	DisplayName string
	Kind        ModalityKind

	// Sign is +1 when dragging right increases the value, -1 otherwise.
	Sign float64
	// Sensitivity is the drag distance, in points, for a full 0->1 sweep.
	Sensitivity float64

	Default          float64
	RandomMin        float64
	RandomMax        float64
	SuccessThreshold float64

	// Labels are sorted ascending by From.
	Labels []ValueLabel
}

var closenessLabels = []ValueLabel{
	{0, "No overlap"},
	{0.15, "Very distant"},
	{0.35, "Distant"},
	{0.55, "Close"},
	{0.75, "Very close"},
	{0.95, "Complete overlap"},
}

var agreementLabels = []ValueLabel{
	{0, "Not at all"},
	{0.25, "Slightly"},
	{0.5, "Moderately"},
	{0.75, "Strongly"},
	{0.95, "Completely"},
}

var membershipLabels = []ValueLabel{
	{0, "Neither in set"},
	{0.5, "One in set"},
	{1, "Both in set"},
}

var descriptors = map[models.Modality]ModalityDescriptor{
	models.ModalityBasicIOS: {
		Sign: 1, Sensitivity: 300, Default: 0,
		RandomMin: 0, RandomMax: 1, Labels: closenessLabels,
	},
	models.ModalityAdvancedIOS: {
		Kind: KindScaled, Sign: 1, Sensitivity: 300, Default: 0,
		RandomMin: 0.2, RandomMax: 0.8, Labels: closenessLabels,
	},
	models.ModalityOverlapIOS: {
		Sign: 1, Sensitivity: 250, Default: 0.5,
		RandomMin: 0.2, RandomMax: 0.8, Labels: closenessLabels,
	},
	models.ModalitySetMembership: {
		Kind: KindMembership, Sign: 1, Sensitivity: 1, Default: 0,
		RandomMin: 0, RandomMax: 1, Labels: membershipLabels,
	},
	models.ModalityProximity: {
		// Dragging right moves the circles apart.
		Sign: -1, Sensitivity: 300, Default: 0.5,
		RandomMin: 0.2, RandomMax: 0.8, Labels: closenessLabels,
	},
	models.ModalityIdentification: {
		Sign: 1, Sensitivity: 300, Default: 0,
		RandomMin: 0, RandomMax: 1, Labels: agreementLabels,
	},
	models.ModalityProjection: {
		Sign: 1, Sensitivity: 350, Default: 0,
		RandomMin: 0.2, RandomMax: 0.8, Labels: agreementLabels,
	},
	models.ModalityAttribution: {
		Sign: -1, Sensitivity: 350, Default: 0.5,
		RandomMin: 0.2, RandomMax: 0.8, Labels: agreementLabels,
	},
	models.ModalityObservation: {
		Sign: 1, Sensitivity: 300, Default: 0.5,
		RandomMin: 0, RandomMax: 1, Labels: agreementLabels,
	},
}

func init() {
	for m, d := range descriptors {
		d.Modality = m
		if d.DisplayName == "" {
			d.DisplayName = displayNameFor(m)
		}
		if d.SuccessThreshold == 0 {
			d.SuccessThreshold = 0.98
		}
		descriptors[m] = d
	}
}

// displayNameFor derives "Set Membership" from "setMembership" and keeps
// the IOS acronym upper case.
func displayNameFor(m models.Modality) string {
	titleCaser := cases.Title(language.English)
	s := string(m)
	if len(s) > 3 && s[len(s)-3:] == "IOS" {
		return titleCaser.String(s[:len(s)-3]) + " IOS"
	}
	var words []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			words = append(words, ' ')
		}
		words = append(words, r)
	}
	return titleCaser.String(string(words))
}

// Descriptor returns the descriptor of m.
func Descriptor(m models.Modality) (ModalityDescriptor, error) {
	d, ok := descriptors[m]
	if !ok {
		return ModalityDescriptor{}, fmt.Errorf("unknown modality %q", m)
	}
	return d, nil
}

// DisplayName returns the human-readable name of m, or m itself when unknown.
func DisplayName(m models.Modality) string {
	if d, ok := descriptors[m]; ok {
		return d.DisplayName
	}
	return string(m)
}

// DefaultPosition returns the position a new measurement starts at under
// the resetToDefault policy.
func (d ModalityDescriptor) DefaultPosition() models.Position {
	p := models.Position{Primary: d.Default}
	switch d.Kind {
	case KindScaled:
		p.Secondary = map[string]float64{
			models.SecondarySelfScale:  ScaleDefault,
			models.SecondaryOtherScale: ScaleDefault,
		}
	case KindMembership:
		p.Secondary = map[string]float64{
			models.SecondarySelfInSet:  0,
			models.SecondaryOtherInSet: 0,
		}
	}
	return p
}

// Describe returns the label of the band containing v.
func (d ModalityDescriptor) Describe(v float64) string {
	label := ""
	for _, l := range d.Labels {
		if v >= l.From {
			label = l.Label
		}
	}
	return label
}

// MembershipPrimary derives the primary value of a set-membership
// measurement: the fraction of the two entities inside the set.
func MembershipPrimary(selfIn, otherIn bool) float64 {
	v := 0.0
	if selfIn {
		v += 0.5
	}
	if otherIn {
		v += 0.5
	}
	return v
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
