package fim

import (
	"regexp"
)

// OptionMask is a set of independent per-root monitoring flags. It controls
// both which fields a Fingerprint populates and which components of a
// Record's flags tag are active.
type OptionMask uint16

const (
	// OptionSize includes the file size in computed fingerprints.
	OptionSize OptionMask = 1 << iota
	// OptionPerm includes the file mode in computed fingerprints.
	OptionPerm
	// OptionOwner includes the file owner (UID) in computed fingerprints.
	OptionOwner
	// OptionGroup includes the file group (GID) in computed fingerprints.
	OptionGroup
	// OptionMD5 includes an MD5 digest in computed fingerprints.
	OptionMD5
	// OptionSHA1 includes a SHA-1 digest in computed fingerprints.
	OptionSHA1
	// OptionSeeChanges requests that a textual diff be captured alongside
	// modification events.
	OptionSeeChanges
	// OptionRealtime is accepted in a root's mask but does not select
	// realtime coverage: fimd runs one realtime source over the first
	// configured root, whatever the roots' masks contain.
	OptionRealtime
)

// Has reports whether every flag in other is set in m.
func (m OptionMask) Has(other OptionMask) bool {
	return m&other == other
}

// FlagsTag encodes the six-character flags tag described by the fingerprint
// wire format: one byte per check, '+' if active and '-' otherwise, except
// that the SHA-1 position additionally distinguishes SEECHANGES with ('s')
// and without ('n') SHA-1 enabled.
type FlagsTag [6]byte

// NewFlagsTag derives the flags tag for a given option mask. The resulting
// tag is fixed for the lifetime of the record it seeds; changing a root's
// mask requires wiping the database.
func NewFlagsTag(mask OptionMask) FlagsTag {
	bit := func(set bool) byte {
		if set {
			return '+'
		}
		return '-'
	}

	var tag FlagsTag
	tag[0] = bit(mask.Has(OptionSize))
	tag[1] = bit(mask.Has(OptionPerm))
	tag[2] = bit(mask.Has(OptionOwner))
	tag[3] = bit(mask.Has(OptionGroup))
	tag[4] = bit(mask.Has(OptionMD5))

	switch {
	case mask.Has(OptionSeeChanges) && mask.Has(OptionSHA1):
		tag[5] = 's'
	case mask.Has(OptionSeeChanges):
		tag[5] = 'n'
	default:
		tag[5] = bit(mask.Has(OptionSHA1))
	}

	return tag
}

// WantSize reports whether the size field should be populated.
func (t FlagsTag) WantSize() bool { return t[0] == '+' }

// WantPerm reports whether the mode field should be populated.
func (t FlagsTag) WantPerm() bool { return t[1] == '+' }

// WantOwner reports whether the UID field should be populated.
func (t FlagsTag) WantOwner() bool { return t[2] == '+' }

// WantGroup reports whether the GID field should be populated.
func (t FlagsTag) WantGroup() bool { return t[3] == '+' }

// WantMD5 reports whether an MD5 digest should be computed.
func (t FlagsTag) WantMD5() bool { return t[4] == '+' }

// WantSHA1 reports whether a SHA-1 digest should be computed. Both the
// plain '+' form and the SEECHANGES-with-SHA1 's' form request it.
func (t FlagsTag) WantSHA1() bool { return t[5] == '+' || t[5] == 's' }

// SeeChanges reports whether this record requests diff capture on
// modification, encoded by either SEECHANGES variant.
func (t FlagsTag) SeeChanges() bool { return t[5] == 's' || t[5] == 'n' }

// Restriction is a per-root regular expression that a candidate path must
// match in order to be monitored. A nil Restriction matches everything.
type Restriction struct {
	pattern *regexp.Regexp
}

// NewRestriction compiles a restriction pattern. An empty pattern yields a
// Restriction that matches every path.
func NewRestriction(pattern string) (*Restriction, error) {
	if pattern == "" {
		return nil, nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Restriction{pattern: compiled}, nil
}

// Matches reports whether path satisfies the restriction. A nil Restriction
// (including the Restriction method receiver itself being nil) always
// matches.
func (r *Restriction) Matches(path string) bool {
	if r == nil {
		return true
	}
	return r.pattern.MatchString(path)
}
