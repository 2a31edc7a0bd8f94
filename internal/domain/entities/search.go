package entities

import (
	"fmt"
	"maps"
)

// StepKind names the rung of the fallback ladder a SearchStep belongs to.
type StepKind string

const (
	StepFocusedSection StepKind = "focused_section"
	StepLevelTopic     StepKind = "level_topic"
	StepLevel          StepKind = "level"
	StepHigherLevel    StepKind = "higher_level"
	StepUnconstrained  StepKind = "unconstrained"
)

// SearchStep is one filter combination tried against the item store.
// Empty fields place no constraint on that dimension.
type SearchStep struct {
	Kind      StepKind
	Level     Level
	Topic     Topic
	SectionID string
}

func (s SearchStep) String() string {
	return fmt.Sprintf("%s{level=%q topic=%q section=%q}", s.Kind, s.Level, s.Topic, s.SectionID)
}

// ExhaustionKey returns the key recorded when the step comes back empty.
// The unconstrained step has no key.
func (s SearchStep) ExhaustionKey() (ExhaustionKey, bool) {
	switch {
	case s.Level == "":
		return ExhaustionKey{}, false
	case s.SectionID != "":
		return SectionKey(s.Level, s.SectionID), true
	case s.Topic != "":
		return TopicKey(s.Level, s.Topic), true
	default:
		return LevelKey(s.Level), true
	}
}

// Scope is the dimension an ExhaustionKey covers within a level.
type Scope string

const (
	ScopeLevel   Scope = "level"
	ScopeTopic   Scope = "topic"
	ScopeSection Scope = "section"
)

// ExhaustionKey identifies a (level, scope) combination known to be empty.
type ExhaustionKey struct {
	Level Level
	Scope Scope
	Value string
}

func LevelKey(l Level) ExhaustionKey {
	return ExhaustionKey{Level: l, Scope: ScopeLevel}
}

func TopicKey(l Level, t Topic) ExhaustionKey {
	return ExhaustionKey{Level: l, Scope: ScopeTopic, Value: string(t)}
}

func SectionKey(l Level, sectionID string) ExhaustionKey {
	return ExhaustionKey{Level: l, Scope: ScopeSection, Value: sectionID}
}

// Transition tells the caller that the served material moved away from the
// learner's current level or topic.
type Transition string

const (
	TransitionNone        Transition = ""
	TransitionLevelUp     Transition = "level_up"
	TransitionLevelChange Transition = "level_change"
	TransitionTopicChange Transition = "topic_change"
)

// SessionContext is the planner's view of a practice session. It is passed
// by value into every planner call and returned updated; the maps are copied
// by Clone before any mutation.
type SessionContext struct {
	UserID         int64
	Level          Level
	Topic          Topic
	FocusedSection string

	Exhausted map[ExhaustionKey]struct{}
	Shown     map[int64]struct{}
}

// NewSessionContext creates a context with empty memory.
func NewSessionContext(userID int64, level Level, topic Topic) SessionContext {
	return SessionContext{
		UserID:    userID,
		Level:     level,
		Topic:     topic,
		Exhausted: make(map[ExhaustionKey]struct{}),
		Shown:     make(map[int64]struct{}),
	}
}

// Clone returns a deep copy whose maps can be mutated independently.
func (c SessionContext) Clone() SessionContext {
	out := c
	out.Exhausted = make(map[ExhaustionKey]struct{}, len(c.Exhausted))
	maps.Copy(out.Exhausted, c.Exhausted)
	out.Shown = make(map[int64]struct{}, len(c.Shown))
	maps.Copy(out.Shown, c.Shown)
	return out
}

func (c SessionContext) IsExhausted(k ExhaustionKey) bool {
	_, ok := c.Exhausted[k]
	return ok
}

func (c *SessionContext) MarkExhausted(k ExhaustionKey) {
	if c.Exhausted == nil {
		c.Exhausted = make(map[ExhaustionKey]struct{})
	}
	c.Exhausted[k] = struct{}{}
}

// ClearExhaustion forgets every exhausted scope. The shown-set is kept.
func (c *SessionContext) ClearExhaustion() {
	c.Exhausted = make(map[ExhaustionKey]struct{})
}

func (c SessionContext) WasShown(itemID int64) bool {
	_, ok := c.Shown[itemID]
	return ok
}

func (c *SessionContext) MarkShown(itemID int64) {
	if c.Shown == nil {
		c.Shown = make(map[int64]struct{})
	}
	c.Shown[itemID] = struct{}{}
}

// ShownIDs returns the shown-set as a slice for store exclusion filters.
func (c SessionContext) ShownIDs() []int64 {
	ids := make([]int64, 0, len(c.Shown))
	for id := range c.Shown {
		ids = append(ids, id)
	}
	return ids
}

// ItemQuery is one item store lookup issued for a search step.
type ItemQuery struct {
	Step       SearchStep
	UserID     int64   // used to order items after the learner's watermark
	ExcludeIDs []int64 // items already shown in the session
	Limit      int
}
