package models

// Modality identifies one of the nine measurement paradigms.
type Modality string

const (
	ModalityBasicIOS       Modality = "basicIOS"
	ModalityAdvancedIOS    Modality = "advancedIOS"
	ModalityOverlapIOS     Modality = "overlapIOS"
	ModalitySetMembership  Modality = "setMembership"
	ModalityProximity      Modality = "proximity"
	ModalityIdentification Modality = "identification"
	ModalityProjection     Modality = "projection"
	ModalityAttribution    Modality = "attribution"
	ModalityObservation    Modality = "observation"
)

// AllModalities lists every modality in presentation order.
var AllModalities = []Modality{
	ModalityBasicIOS,
	ModalityAdvancedIOS,
	ModalityOverlapIOS,
	ModalitySetMembership,
	ModalityProximity,
	ModalityIdentification,
	ModalityProjection,
	ModalityAttribution,
	ModalityObservation,
}

// Valid reports whether m is one of the known modalities.
func (m Modality) Valid() bool {
	for _, known := range AllModalities {
		if m == known {
			return true
		}
	}
	return false
}

// Secondary value keys used by multi-value modalities.
const (
	SecondarySelfScale  = "selfScale"
	SecondaryOtherScale = "otherScale"
	SecondarySelfInSet  = "selfInSet"
	SecondaryOtherInSet = "otherInSet"
)
