// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is a named group of signing addresses with an approval threshold.
//
// Name is matched exactly (case-sensitive). Members keep the order in which
// they were added; AddressCI is the folded form used for membership checks.
type Organization struct {
	ID        primitive.ObjectID `bson:"_id" json:"-"`
	Name      string             `bson:"name" json:"name"`
	Members   []Member           `bson:"members" json:"members"`
	Threshold int                `bson:"threshold" json:"threshold"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Member is one participant identity of an organization.
type Member struct {
	Address   string    `bson:"address" json:"address"`
	AddressCI string    `bson:"address_ci" json:"-"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// HasMember reports whether the folded address belongs to the organization.
func (o Organization) HasMember(addressCI string) bool {
	for _, m := range o.Members {
		if m.AddressCI == addressCI {
			return true
		}
	}
	return false
}

// Addresses returns member addresses in insertion order.
func (o Organization) Addresses() []string {
	out := make([]string, 0, len(o.Members))
	for _, m := range o.Members {
		out = append(out, m.Address)
	}
	return out
}
