package entities

import "strings"

// GapMarker marks a gap inside ItemBody.Text.
const GapMarker = "___"

// FallbackItemID identifies the static item served when the catalog has
// nothing left. It never exists in the item store.
const FallbackItemID int64 = 0

// Item is one practice exercise. It belongs to exactly one grammar section
// and carries an order number unique within that section.
type Item struct {
	ID          int64
	Level       Level
	SectionID   string
	OrderNumber int
	Active      bool // inactive items (e.g. reported as faulty) are never served
	Body        ItemBody
}

// ItemPosition places an item within the curriculum.
type ItemPosition struct {
	SectionID   string
	OrderNumber int
}

// ItemBody is the gap/answer payload. The delivery engine treats it as opaque.
type ItemBody struct {
	Text string `json:"text"`
	Gaps []Gap  `json:"gaps"`
}

// Gap is one blank in the item text with its answer options.
type Gap struct {
	Answer  string   `json:"answer"`
	Options []string `json:"options"`
}

// IsFallback reports whether the item is the static fallback item.
func (i Item) IsFallback() bool {
	return i.ID == FallbackItemID
}

// CheckGap reports whether answer fills gap idx correctly.
func (i Item) CheckGap(idx int, answer string) bool {
	if idx < 0 || idx >= len(i.Body.Gaps) {
		return false
	}
	return strings.EqualFold(
		strings.TrimSpace(i.Body.Gaps[idx].Answer),
		strings.TrimSpace(answer),
	)
}

// FallbackItem returns the hardcoded item used when no practice content is
// available, so the learner never hits a dead end.
func FallbackItem() Item {
	return Item{
		ID:          FallbackItemID,
		Level:       LevelA1,
		OrderNumber: 1,
		Active:      true,
		Body: ItemBody{
			Text: "She ___ to school every day.",
			Gaps: []Gap{
				{Answer: "goes", Options: []string{"go", "goes", "going", "gone"}},
			},
		},
	}
}
