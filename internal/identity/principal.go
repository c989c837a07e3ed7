package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Principal is the signed-in user as reported by the identity provider.
type Principal struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// Label returns the name to greet the user with: the display name when set,
// otherwise a title-cased form of the email's local part.
func (p Principal) Label() string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(p.Email, "@")
	local = strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-', '+':
			return ' '
		}
		return r
	}, local)
	local = strings.Join(strings.Fields(local), " ")
	if local == "" {
		return p.Email
	}
	return cases.Title(language.Und).String(strings.ToLower(local))
}
