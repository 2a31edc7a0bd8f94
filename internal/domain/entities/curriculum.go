package entities

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownSection = errors.New("unknown grammar section")

// Topic is a cross-cutting tag applied to grammar sections.
type Topic string

// GrammarSection is a named, internally ordered sub-topic within a level.
type GrammarSection struct {
	ID       string  `json:"id"`
	Level    Level   `json:"level"`
	Name     string  `json:"name"`
	Position int     `json:"position"` // order of the section within its level
	Topics   []Topic `json:"topics"`
}

// HasTopic reports whether the section is tagged with t.
func (s GrammarSection) HasTopic(t Topic) bool {
	for _, v := range s.Topics {
		if v == t {
			return true
		}
	}
	return false
}

// Curriculum is the read-only content catalog: levels, their sections and
// the closed topic vocabulary.
type Curriculum struct {
	Topics   []Topic          `json:"topics"`
	Sections []GrammarSection `json:"sections"`

	byID map[string]*GrammarSection
}

// Index validates the catalog and builds lookup tables. It must be called
// once after the curriculum is decoded.
func (c *Curriculum) Index() error {
	vocabulary := make(map[Topic]struct{}, len(c.Topics))
	for _, t := range c.Topics {
		vocabulary[t] = struct{}{}
	}

	c.byID = make(map[string]*GrammarSection, len(c.Sections))
	for i := range c.Sections {
		s := &c.Sections[i]
		if s.ID == "" {
			return fmt.Errorf("section #%d: empty id", i)
		}
		if s.Level.Index() < 0 {
			return fmt.Errorf("section %s: %w: %q", s.ID, ErrUnknownLevel, s.Level)
		}
		if _, dup := c.byID[s.ID]; dup {
			return fmt.Errorf("section %s: duplicate id", s.ID)
		}
		for _, t := range s.Topics {
			if _, ok := vocabulary[t]; !ok {
				return fmt.Errorf("section %s: topic %q not in vocabulary", s.ID, t)
			}
		}
		c.byID[s.ID] = s
	}

	sort.SliceStable(c.Sections, func(i, j int) bool {
		a, b := c.Sections[i], c.Sections[j]
		if a.Level != b.Level {
			return a.Level.Index() < b.Level.Index()
		}
		return a.Position < b.Position
	})
	// Pointers moved with the sort.
	for i := range c.Sections {
		c.byID[c.Sections[i].ID] = &c.Sections[i]
	}

	return nil
}

// Section returns the section with the given id.
func (c *Curriculum) Section(id string) (GrammarSection, error) {
	s, ok := c.byID[id]
	if !ok {
		return GrammarSection{}, fmt.Errorf("%w: %q", ErrUnknownSection, id)
	}
	return *s, nil
}

// SectionsByLevel returns the sections of a level in position order.
func (c *Curriculum) SectionsByLevel(l Level) []GrammarSection {
	var out []GrammarSection
	for _, s := range c.Sections {
		if s.Level == l {
			out = append(out, s)
		}
	}
	return out
}

// SectionIDsForTopic returns ids of sections tagged with t. An empty level
// matches every level.
func (c *Curriculum) SectionIDsForTopic(l Level, t Topic) []string {
	var out []string
	for _, s := range c.Sections {
		if l != "" && s.Level != l {
			continue
		}
		if s.HasTopic(t) {
			out = append(out, s.ID)
		}
	}
	return out
}

// HasTopic reports whether t belongs to the topic vocabulary.
func (c *Curriculum) HasTopic(t Topic) bool {
	for _, v := range c.Topics {
		if v == t {
			return true
		}
	}
	return false
}

// SectionHasTopic reports whether the section exists and is tagged with t.
func (c *Curriculum) SectionHasTopic(sectionID string, t Topic) bool {
	s, ok := c.byID[sectionID]
	return ok && s.HasTopic(t)
}
