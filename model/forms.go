package model

// ConferenceForm is the wire form of a Conference. MaxAttendees and
// SeatsAvailable are pointers so updates can tell an absent field from zero.
type ConferenceForm struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	OrganizerUserID      string   `json:"organizerUserId,omitempty"`
	Topics               []string `json:"topics,omitempty"`
	City                 string   `json:"city,omitempty"`
	StartDate            string   `json:"startDate,omitempty"`
	Month                int      `json:"month"`
	MaxAttendees         *int     `json:"maxAttendees,omitempty"`
	SeatsAvailable       *int     `json:"seatsAvailable,omitempty"`
	EndDate              string   `json:"endDate,omitempty"`
	WebsafeKey           string   `json:"websafeKey,omitempty"`
	OrganizerDisplayName string   `json:"organizerDisplayName,omitempty"`
}

type ConferenceForms struct {
	Items []ConferenceForm `json:"items"`
}

// ConferenceQueryForm is one filter clause in the public query vocabulary.
type ConferenceQueryForm struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type ConferenceQueryForms struct {
	Filters []ConferenceQueryForm `json:"filters"`
}

type SessionForm struct {
	Name          string   `json:"name"`
	Highlights    []string `json:"highlights,omitempty"`
	Speaker       string   `json:"speaker,omitempty"`
	Duration      int      `json:"duration,omitempty"`
	TypeOfSession string   `json:"typeOfSession,omitempty"`
	Date          string   `json:"date,omitempty"`
	StartTime     string   `json:"startTime,omitempty"`
	WebsafeKey    string   `json:"websafeKey,omitempty"`
}

type SessionForms struct {
	Items []SessionForm `json:"items"`
}

type ProfileForm struct {
	DisplayName            string       `json:"displayName"`
	MainEmail              string       `json:"mainEmail"`
	TeeShirtSize           TeeShirtSize `json:"teeShirtSize"`
	ConferenceKeysToAttend []string     `json:"conferenceKeysToAttend"`
}

// ProfileMiniForm carries the user-editable profile fields.
type ProfileMiniForm struct {
	DisplayName  string       `json:"displayName"`
	TeeShirtSize TeeShirtSize `json:"teeShirtSize"`
}

type StringMessage struct {
	Data string `json:"data"`
}

type BooleanMessage struct {
	Data bool `json:"data"`
}
