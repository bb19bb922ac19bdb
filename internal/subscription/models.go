package subscription

import (
	"strings"
	"time"
)

// User is a bare account record. It exists only while at least one link
// references it; RemoveAll deletes it together with the links.
type User struct {
	ID string `bson:"_id" json:"id"`
}

// Subscription is a stored (attribute, normalized value) pair. It is unique
// per pair and shared: two users subscribing to the same thing reference the
// same document through their own links.
type Subscription struct {
	ID    string `bson:"_id" json:"id"`
	Attr  string `bson:"attr" json:"attribute"`
	Value string `bson:"value" json:"value"`
}

// Link ties a user to a subscription. Added defines the user-visible ordering
// used by List and Remove.
type Link struct {
	ID    string    `bson:"_id"`
	User  string    `bson:"user"`
	Sub   string    `bson:"sub"`
	Added time.Time `bson:"added"`
}

// Normalize is applied to attribute names and values both at subscription
// creation and at match time. The two sides must agree exactly or matches
// are silently missed.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
