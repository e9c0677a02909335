package imap

// Flag is an IMAP message flag, including the standard system flags (which
// always begin with a backslash) and arbitrary keywords.
type Flag string

const (
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
	FlagRecent   Flag = "\\Recent"
	// FlagWildcard ("\*") in PERMANENTFLAGS means any keyword is allowed.
	FlagWildcard Flag = "\\*"
)

// FlagSet is a small set of flags with permission-aware filtering helpers
// used by STORE and APPEND (spec.md §4.6).
type FlagSet map[Flag]struct{}

func NewFlagSet(flags ...Flag) FlagSet {
	s := make(FlagSet, len(flags))
	for _, f := range flags {
		s[f] = struct{}{}
	}
	return s
}

func (s FlagSet) Has(f Flag) bool {
	_, ok := s[f]
	return ok
}

func (s FlagSet) Slice() []Flag {
	out := make([]Flag, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	return out
}

// Permits reports whether flag f may be applied to a mailbox with the given
// permanent-flags set: either the set contains the literal flag, or it
// contains the wildcard "\*" (any flag/keyword allowed).
func Permits(permanentFlags FlagSet, f Flag) bool {
	if permanentFlags.Has(FlagWildcard) {
		return true
	}
	return permanentFlags.Has(f)
}

// FilterPermitted returns the subset of flags permitted by permanentFlags,
// falling back to checking mailboxFlags (the FLAGS response, distinct from
// PERMANENTFLAGS) when the wildcard is absent, per spec.md §4.5 rule 9 and
// §4.6 STORE/APPEND flag filtering.
func FilterPermitted(permanentFlags, mailboxFlags FlagSet, flags []Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		if Permits(permanentFlags, f) || mailboxFlags.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
