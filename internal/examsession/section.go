package examsession

import "fmt"

// DefaultResponseSeconds is the countdown applied when a question carries no
// response time of its own.
const DefaultResponseSeconds = 30

// Section is one fixed exam segment with the number of questions it asks for.
// A SubPart of 0 means the part has no sub-parts.
type Section struct {
	Part           int    `json:"part"`
	SubPart        int    `json:"sub_part"`
	RequestedCount int    `json:"requested_count"`
	Label          string `json:"label"`
}

// Key identifies the section in the actual-count map.
func (s Section) Key() string {
	return SectionKey(s.Part, s.SubPart)
}

// SectionKey formats the "{part}-{subPart}" key.
func SectionKey(part, subPart int) string {
	return fmt.Sprintf("%d-%d", part, subPart)
}

// DefaultSections returns the exam layout in order. A fresh slice is returned
// on every call so callers cannot alter the layout of running sessions.
func DefaultSections() []Section {
	return []Section{
		{Part: 1, SubPart: 1, RequestedCount: 3, Label: "1.1"},
		{Part: 1, SubPart: 2, RequestedCount: 3, Label: "1.2"},
		{Part: 2, SubPart: 0, RequestedCount: 1, Label: "2"},
		{Part: 3, SubPart: 0, RequestedCount: 1, Label: "3"},
	}
}

// PartLabel renders a part/sub-part pair the way candidates see it, e.g. "Part 1.2".
func PartLabel(part, subPart int) string {
	if subPart > 0 {
		return fmt.Sprintf("Part %d.%d", part, subPart)
	}
	return fmt.Sprintf("Part %d", part)
}
