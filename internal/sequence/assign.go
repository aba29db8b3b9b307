package sequence

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ErrIdentityIncomplete is returned when sequencing is requested before both
// participant fields are filled in.
var ErrIdentityIncomplete = errors.New("participant name and id are required before sequencing")

// Provenance values recorded for the list and seed of an assignment.
const (
	SourceDerived  = "auto_name_id"
	SourceOverride = "query_param"
)

// The two lists that partition the item bank.
const (
	ListA = "List1"
	ListB = "List2"
)

// Assignment is the reproducible (list, seed) pair derived for one
// participant, with the provenance of each field.
type Assignment struct {
	Name       string
	ID         string
	List       string
	ListSource string
	Seed       uint32
	SeedSource string
}

// Overrides carries the optional explicit list and seed the UI may forward
// (originally URL query parameters). A non-numeric seed is ignored, as the
// original instrument ignored it.
type Overrides struct {
	List string
	Seed string
}

// HashIdentity derives a stable 32-bit value from a string. It walks the
// UTF-16 code units so that multibyte participant names hash identically to
// records collected by the prior instrument.
func HashIdentity(s string) uint32 {
	units := utf16.Encode([]rune(s))
	h := uint32(1779033703) ^ uint32(len(units))
	for _, c := range units {
		h = (h ^ uint32(c)) * 3432918353
		h = h<<13 | h>>19
	}
	return h ^ h>>16
}

// Assign maps a participant identity to its (list, seed) pair. List choice is
// hash parity (even selects List1) and the seed is the hash itself, unless an
// override supplies either value explicitly.
func Assign(name, id string, ov Overrides) (Assignment, error) {
	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	if name == "" || id == "" {
		return Assignment{}, ErrIdentityIncomplete
	}

	h := HashIdentity(id + "|" + name)
	a := Assignment{
		Name:       name,
		ID:         id,
		List:       ListA,
		ListSource: SourceDerived,
		Seed:       h,
		SeedSource: SourceDerived,
	}
	if h%2 != 0 {
		a.List = ListB
	}

	if ov.List != "" {
		a.List = ov.List
		a.ListSource = SourceOverride
	}
	if raw := strings.TrimSpace(ov.Seed); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			a.Seed = uint32(n)
			a.SeedSource = SourceOverride
		}
	}
	return a, nil
}
