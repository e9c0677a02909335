package imap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UID is a persistent per-message identifier, stable while UIDValidity is
// unchanged. It is a 32-bit unsigned value, matching the wire format;
// UIDVALIDITY and MODSEQ values are carried separately as uint64.
type UID uint32

// SeqNum is a 1-based sequence number, valid only while the mailbox remains
// selected and unaffected by an intervening EXPUNGE.
type SeqNum uint32

// seqRange is an inclusive [Start, End] range; End == 0 means "*" (the
// largest value the server knows, i.e. unbounded).
type seqRange struct {
	Start, End uint32
}

// SeqSet is a parsed IMAP sequence-set: an ordered list of numbers/ranges,
// optionally including "*". The zero value is an empty set.
type SeqSet struct {
	ranges []seqRange
}

// ParseSeqSet parses a wire-form sequence set such as "1:3,5,9:*".
func ParseSeqSet(s string) (SeqSet, error) {
	var set SeqSet
	if s == "" {
		return set, fmt.Errorf("imap: empty sequence set")
	}
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			return set, fmt.Errorf("imap: malformed sequence set %q", s)
		}
		if idx := strings.IndexByte(part, ':'); idx >= 0 {
			startStr, endStr := part[:idx], part[idx+1:]
			start, err := parseSeqNum(startStr)
			if err != nil {
				return set, err
			}
			end, err := parseSeqNum(endStr)
			if err != nil {
				return set, err
			}
			if end != 0 && start > end {
				start, end = end, start
			}
			set.ranges = append(set.ranges, seqRange{Start: start, End: end})
		} else {
			n, err := parseSeqNum(part)
			if err != nil {
				return set, err
			}
			set.ranges = append(set.ranges, seqRange{Start: n, End: n})
		}
	}
	return set, nil
}

func parseSeqNum(s string) (uint32, error) {
	if s == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imap: invalid sequence number %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("imap: sequence number 0 is invalid")
	}
	return uint32(n), nil
}

// AddNum appends a single number to the set.
func (s *SeqSet) AddNum(n uint32) {
	s.ranges = append(s.ranges, seqRange{Start: n, End: n})
}

// AddRange appends an inclusive range; end == 0 means "*".
func (s *SeqSet) AddRange(start, end uint32) {
	s.ranges = append(s.ranges, seqRange{Start: start, End: end})
}

// Empty reports whether the set has no members.
func (s SeqSet) Empty() bool { return len(s.ranges) == 0 }

// String renders the wire form.
func (s SeqSet) String() string {
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		if r.Start == r.End {
			parts = append(parts, strconv.FormatUint(uint64(r.Start), 10))
			continue
		}
		end := "*"
		if r.End != 0 {
			end = strconv.FormatUint(uint64(r.End), 10)
		}
		parts = append(parts, fmt.Sprintf("%d:%s", r.Start, end))
	}
	return strings.Join(parts, ",")
}

// Expand enumerates the set's members against a known maximum (used when a
// range ends in "*"). It does not deduplicate or sort; callers that need a
// canonical membership test should use Contains.
func (s SeqSet) Expand(max uint32) []uint32 {
	var out []uint32
	for _, r := range s.ranges {
		end := r.End
		if end == 0 {
			end = max
		}
		for n := r.Start; n <= end && n <= max; n++ {
			out = append(out, n)
		}
	}
	return out
}

// Contains reports whether n is a member of the set, given the current
// maximum value "*" resolves to.
func (s SeqSet) Contains(n, max uint32) bool {
	for _, r := range s.ranges {
		end := r.End
		if end == 0 {
			end = max
		}
		if n >= r.Start && n <= end {
			return true
		}
	}
	return false
}

// Chunk splits the set into a sequence of sets each covering at most size
// expanded members, per SPEC_FULL.md's batching of large FETCH/STORE ranges.
// Chunking only applies to bounded (non-"*") sets; an unbounded set is
// returned as a single chunk since its true extent isn't known locally.
func (s SeqSet) Chunk(size int) []SeqSet {
	if size <= 0 || len(s.ranges) == 0 {
		return []SeqSet{s}
	}
	for _, r := range s.ranges {
		if r.End == 0 {
			return []SeqSet{s}
		}
	}
	var all []uint32
	for _, r := range s.ranges {
		for n := r.Start; n <= r.End; n++ {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	var chunks []SeqSet
	for i := 0; i < len(all); i += size {
		end := i + size
		if end > len(all) {
			end = len(all)
		}
		var c SeqSet
		for _, n := range all[i:end] {
			c.AddNum(n)
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// UIDSet is a SeqSet of UIDs; kept as a distinct type so callers cannot
// accidentally pass sequence numbers where UIDs are required.
type UIDSet struct{ SeqSet }

func ParseUIDSet(s string) (UIDSet, error) {
	ss, err := ParseSeqSet(s)
	return UIDSet{ss}, err
}

func (u *UIDSet) AddNum(uid UID) { u.SeqSet.AddNum(uint32(uid)) }

// NumSet is the wire-level pairing of a sequence set with whether it
// addresses sequence numbers or UIDs (UID commands vs. plain commands).
type NumSet struct {
	Set    SeqSet
	IsUID  bool
}

func (n NumSet) String() string { return n.Set.String() }
