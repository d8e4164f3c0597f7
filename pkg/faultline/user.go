// user.go models report identity and the identifier-or-profile SetUser argument.

package faultline

import (
	"sync"

	"github.com/google/uuid"
)

// User identifies who was using the application when a fault occurred.
type User struct {
	Identifier  string `json:"identifier"`
	IsAnonymous bool   `json:"isAnonymous"`
	FirstName   string `json:"firstName,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// UserArg is the tagged variant accepted by SetUser: either a bare
// identifier or a full profile. Construct with ByIdentifier or ByProfile.
// The zero value resolves to an anonymous user.
type UserArg struct {
	identifier string
	profile    *User
}

// ByIdentifier builds a UserArg from a bare identifier string. An empty
// identifier resolves to a synthesized anonymous identity.
func ByIdentifier(id string) UserArg {
	return UserArg{identifier: id}
}

// ByProfile builds a UserArg from a full user profile, used verbatim except
// that a missing identifier is synthesized.
func ByProfile(u User) UserArg {
	return UserArg{profile: &u}
}

// anonymousID is synthesized once per process so anonymous reports from one
// run group under a stable identity.
var anonymousID = sync.OnceValue(func() string {
	return "anon-" + uuid.NewString()
})

// resolveUser normalizes a UserArg into a canonical User. Setting a user is
// a total overwrite of the prior user, never a merge.
func resolveUser(arg UserArg) User {
	if arg.profile != nil {
		u := *arg.profile
		if u.Identifier == "" {
			u.Identifier = anonymousID()
			u.IsAnonymous = true
		}
		return u
	}
	if arg.identifier == "" {
		return anonymousUser()
	}
	return User{Identifier: arg.identifier}
}

func anonymousUser() User {
	return User{Identifier: anonymousID(), IsAnonymous: true}
}
