// Package normalize maps arbitrary statement headers to canonical column roles.
package normalize

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMissingDateColumn is returned when no header can serve as the date
var ErrMissingDateColumn = errors.New("could not detect a date column")

// Role is a canonical column meaning
type Role string

const (
	Date        Role = "date"
	Description Role = "description"
	Amount      Role = "amount"
	Debit       Role = "debit"
	Credit      Role = "credit"
	ThirdParty  Role = "third_party"
	Category    Role = "category"
)

type rolePatterns struct {
	role     Role
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// roles in claim priority: date, then debit/credit, then amount, then the rest.
// Debit/credit go before amount so "montant débit" is not taken as a single amount.
var roles = []rolePatterns{
	{Date, compile(`date`, `dt`, `jour`, `période`)},
	{Debit, compile(`debit`, `débit`)},
	{Credit, compile(`credit`, `crédit`)},
	{Amount, compile(`montant`, `amount`, `net`)},
	{Description, compile(`libellé`, `label`, `description`, `motif`, `memo`, `écriture`)},
	{ThirdParty, compile(`tiers`, `third.*party`, `client`, `fournisseur`, `nom`, `name`, `compte.*tiers`)},
	{Category, compile(`catégorie`, `category`, `compte.*général`, `famille`)},
}

// Column is the header claimed by a role
type Column struct {
	Header string // lower-cased, trimmed
	Index  int
}

// RoleMap assigns at most one header per role and at most one role per header
type RoleMap map[Role]Column

// Has reports whether the role was resolved
func (m RoleMap) Has(r Role) bool {
	_, ok := m[r]
	return ok
}

// Index returns the column index of a role, or -1
func (m RoleMap) Index(r Role) int {
	if c, ok := m[r]; ok {
		return c.Index
	}
	return -1
}

// Normalize resolves headers to roles. For each role in priority order the
// first unclaimed header (in column order) matching any of its patterns wins.
func Normalize(headers []string) (RoleMap, error) {
	names := make([]string, len(headers))
	for i, h := range headers {
		names[i] = strings.ToLower(strings.TrimSpace(h))
	}

	m := make(RoleMap, len(roles))
	claimed := make([]bool, len(names))
	for _, rp := range roles {
		for i, name := range names {
			if claimed[i] || !matchesAny(rp.patterns, name) {
				continue
			}
			m[rp.role] = Column{Header: name, Index: i}
			claimed[i] = true
			break
		}
	}

	if !m.Has(Date) {
		return nil, ErrMissingDateColumn
	}
	return m, nil
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
