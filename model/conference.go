package model

import "time"

// Conference is owned by its organizer's Profile; its key is allocated under
// the organizer's profile key.
type Conference struct {
	Key             *Key      `json:"-" bson:"-" dynamodbav:"-" cbor:"-"`
	Name            string    `json:"name" bson:"name" dynamodbav:"name"`
	Description     string    `json:"description" bson:"description" dynamodbav:"description"`
	OrganizerUserID string    `json:"organizerUserId" bson:"organizerUserId" dynamodbav:"organizerUserId"`
	Topics          []string  `json:"topics" bson:"topics" dynamodbav:"topics"`
	City            string    `json:"city" bson:"city" dynamodbav:"city"`
	StartDate       time.Time `json:"startDate" bson:"startDate" dynamodbav:"startDate"`
	Month           int       `json:"month" bson:"month" dynamodbav:"month"`
	EndDate         time.Time `json:"endDate" bson:"endDate" dynamodbav:"endDate"`
	MaxAttendees    int       `json:"maxAttendees" bson:"maxAttendees" dynamodbav:"maxAttendees"`
	SeatsAvailable  int       `json:"seatsAvailable" bson:"seatsAvailable" dynamodbav:"seatsAvailable"`
}

func (c *Conference) EntityKey() *Key { return c.Key }

func (c *Conference) SetEntityKey(k *Key) { c.Key = k }

func (c *Conference) Properties() Properties {
	props := Properties{
		"name":            c.Name,
		"organizerUserId": c.OrganizerUserID,
		"topics":          c.Topics,
		"city":            c.City,
		"month":           int64(c.Month),
		"maxAttendees":    int64(c.MaxAttendees),
		"seatsAvailable":  int64(c.SeatsAvailable),
	}
	if !c.StartDate.IsZero() {
		props["startDate"] = c.StartDate
	}
	if !c.EndDate.IsZero() {
		props["endDate"] = c.EndDate
	}
	return props
}
