package roles

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is one of a fixed set of values. The zero Role is not a valid role and
// only the package level values below can be constructed outside this package.
type Role struct {
	name string
}

var (
	Admin      = Role{"admin"}
	Trainer    = Role{"trainer"}
	Security   = Role{"security"}
	Accounting = Role{"accounting"}
	Marketing  = Role{"marketing"}
	Developer  = Role{"developer"}
	Design     = Role{"design"}
	User       = Role{"user"}
)

var all = []Role{Admin, Trainer, Security, Accounting, Marketing, Developer, Design, User}

var ErrInvalidRole = errors.New("invalid role")

// All returns every role in declaration order.
func All() []Role {
	out := make([]Role, len(all))
	copy(out, all)
	return out
}

// Parse matches s case-insensitively after trimming whitespace.
func Parse(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range all {
		if r.name == s {
			return r, true
		}
	}
	return Role{}, false
}

// Normalize parses s and falls back to User.
func Normalize(s string) Role {
	return NormalizeOr(s, User)
}

func NormalizeOr(s string, fallback Role) Role {
	if r, ok := Parse(s); ok {
		return r
	}
	return fallback
}

// NormalizeAll normalizes each entry, dropping blanks.
func NormalizeAll(values []string, fallback Role) []Role {
	out := make([]Role, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, NormalizeOr(v, fallback))
	}
	return out
}

// FromClaim reads a role from a token claim value. Only the exact lowercase
// name is accepted.
func FromClaim(v any) (Role, bool) {
	s, ok := v.(string)
	if !ok {
		return Role{}, false
	}
	for _, r := range all {
		if r.name == s {
			return r, true
		}
	}
	return Role{}, false
}

func (r Role) String() string {
	return r.name
}

func (r Role) IsZero() bool {
	return r.name == ""
}

// LandingPath is the dashboard a user with this role is sent to.
func (r Role) LandingPath() string {
	return "/dashboard/" + r.name
}

func (r Role) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, ErrInvalidRole
	}
	return []byte(r.name), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, string(b))
	}
	*r = parsed
	return nil
}

func (r Role) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.name)
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(s))
}

// Strings returns the names of rs.
func Strings(rs []Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.name
	}
	return out
}
