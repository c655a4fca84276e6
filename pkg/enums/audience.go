package enums

import (
	"slices"
	"strings"
)

// Audience scopes catalog categories.
type Audience string

const (
	AudienceMen    Audience = "MEN"
	AudienceWomen  Audience = "WOMEN"
	AudienceKids   Audience = "KIDS"
	AudienceUnisex Audience = "UNISEX"
)

var audiences = []Audience{AudienceMen, AudienceWomen, AudienceKids, AudienceUnisex}

func (a Audience) String() string { return string(a) }

func (a Audience) IsValid() bool { return slices.Contains(audiences, a) }

// ParseAudience accepts any casing and surrounding space, so "men" and
// " Men " both parse.
func ParseAudience(value string) (Audience, error) {
	return parse("audience", audiences, strings.ToUpper(strings.TrimSpace(value)))
}
