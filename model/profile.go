package model

// TeeShirtSize is the shirt size a user picks on their profile.
type TeeShirtSize string

const (
	NotSpecified TeeShirtSize = "NOT_SPECIFIED"
	XSM          TeeShirtSize = "XS_M"
	XSW          TeeShirtSize = "XS_W"
	SM           TeeShirtSize = "S_M"
	SW           TeeShirtSize = "S_W"
	MM           TeeShirtSize = "M_M"
	MW           TeeShirtSize = "M_W"
	LM           TeeShirtSize = "L_M"
	LW           TeeShirtSize = "L_W"
	XLM          TeeShirtSize = "XL_M"
	XLW          TeeShirtSize = "XL_W"
	XXLM         TeeShirtSize = "XXL_M"
	XXLW         TeeShirtSize = "XXL_W"
	XXXLM        TeeShirtSize = "XXXL_M"
	XXXLW        TeeShirtSize = "XXXL_W"
)

var teeShirtSizes = map[TeeShirtSize]bool{
	NotSpecified: true,
	XSM: true, XSW: true, SM: true, SW: true, MM: true, MW: true, LM: true, LW: true,
	XLM: true, XLW: true, XXLM: true, XXLW: true, XXXLM: true, XXXLW: true,
}

func (s TeeShirtSize) Valid() bool {
	return teeShirtSizes[s]
}

// Profile is the per-user root entity. Registrations and the session wishlist
// are embedded as lists of websafe keys.
type Profile struct {
	UserID                 string       `json:"userId" bson:"userId" dynamodbav:"userId"`
	DisplayName            string       `json:"displayName" bson:"displayName" dynamodbav:"displayName"`
	MainEmail              string       `json:"mainEmail" bson:"mainEmail" dynamodbav:"mainEmail"`
	TeeShirtSize           TeeShirtSize `json:"teeShirtSize" bson:"teeShirtSize" dynamodbav:"teeShirtSize"`
	ConferenceKeysToAttend []string     `json:"conferenceKeysToAttend" bson:"conferenceKeysToAttend" dynamodbav:"conferenceKeysToAttend"`
	Wishlist               []string     `json:"wishlist" bson:"wishlist" dynamodbav:"wishlist"`
}

func (p *Profile) EntityKey() *Key { return ProfileKey(p.UserID) }

func (p *Profile) SetEntityKey(k *Key) { p.UserID = k.StringID }

func (p *Profile) Properties() Properties {
	return Properties{
		"userId":      p.UserID,
		"displayName": p.DisplayName,
		"mainEmail":   p.MainEmail,
	}
}
