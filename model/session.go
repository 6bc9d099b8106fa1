package model

import "time"

// Session belongs to a Conference and is keyed under it.
type Session struct {
	Key           *Key      `json:"-" bson:"-" dynamodbav:"-" cbor:"-"`
	Name          string    `json:"name" bson:"name" dynamodbav:"name"`
	Highlights    []string  `json:"highlights" bson:"highlights" dynamodbav:"highlights"`
	Speaker       string    `json:"speaker" bson:"speaker" dynamodbav:"speaker"`
	Duration      int       `json:"duration" bson:"duration" dynamodbav:"duration"`
	TypeOfSession string    `json:"typeOfSession" bson:"typeOfSession" dynamodbav:"typeOfSession"`
	Date          time.Time `json:"date" bson:"date" dynamodbav:"date"`
	// StartTime is a 24h "15:04" time of day, empty when unset.
	StartTime string `json:"startTime" bson:"startTime" dynamodbav:"startTime"`
}

func (s *Session) EntityKey() *Key { return s.Key }

func (s *Session) SetEntityKey(k *Key) { s.Key = k }

func (s *Session) Properties() Properties {
	props := Properties{
		"name":          s.Name,
		"highlights":    s.Highlights,
		"speaker":       s.Speaker,
		"duration":      int64(s.Duration),
		"typeOfSession": s.TypeOfSession,
		"startTime":     s.StartTime,
	}
	if !s.Date.IsZero() {
		props["date"] = s.Date
	}
	return props
}
