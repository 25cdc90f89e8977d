// Package scenario loads the read-only Murder-Mystery content: roles, clue
// parts, investigation targets with their card pools, dynamic rules and the
// phase flow.
package scenario

import (
	"fmt"
)

// StepKind is one entry of a scenario's phase flow.
type StepKind string

const (
	StepIntro       StepKind = "intro"
	StepDiscuss     StepKind = "discuss"
	StepInvestigate StepKind = "investigate"
	StepFinalVote   StepKind = "final_vote"
	StepEndbook     StepKind = "endbook"
)

// Delivery decides how investigation results reach a player.
type Delivery string

const (
	// DeliveryAuto draws a card immediately.
	DeliveryAuto Delivery = "auto"
	// DeliveryManual queues the request for the game master.
	DeliveryManual Delivery = "manual"
)

type Scenario struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Synopsis    string   `yaml:"synopsis" json:"synopsis"`
	CulpritRole string   `yaml:"culprit" json:"-"`
	Delivery    Delivery `yaml:"delivery" json:"delivery"`
	Roles       []Role   `yaml:"roles" json:"roles"`
	Parts       []Part   `yaml:"parts" json:"parts"`
	Targets     []Target `yaml:"targets" json:"targets"`
	Rules       []Rule   `yaml:"rules" json:"-"`
	Flow        []Step   `yaml:"flow" json:"flow"`
	Endbook     string   `yaml:"endbook" json:"-"`
}

// Role is a character a player is dealt. Briefing is private to its holder.
type Role struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"name" json:"name"`
	Briefing    string `yaml:"briefing" json:"-"`
}

// Part is a clue that can be pinned to the public board.
type Part struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Text string `yaml:"text" json:"text"`
}

// Target is something players investigate; each holds a pool of cards.
type Target struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Cards []Card `yaml:"cards" json:"-"`
}

// Effect is what a card or a rule changes when it fires.
type Effect struct {
	RevealPart string  `yaml:"revealPart,omitempty" json:"revealPart,omitempty"`
	Rename     *Rename `yaml:"rename,omitempty" json:"rename,omitempty"`
}

// Rename rewrites the public display name of a role.
type Rename struct {
	Role string `yaml:"role" json:"role"`
	Name string `yaml:"name" json:"name"`
}

type Card struct {
	ID     string `yaml:"id" json:"id"`
	Text   string `yaml:"text" json:"text"`
	Effect `yaml:",inline"`
}

// Rule fires once per game when Card is drawn during Round.
type Rule struct {
	ID     string `yaml:"id" json:"id"`
	Card   string `yaml:"card" json:"card"`
	Round  int    `yaml:"round" json:"round"`
	Effect `yaml:",inline"`
}

// Step is one phase of the flow. Round is set for discuss and investigate.
type Step struct {
	Kind  StepKind `yaml:"kind" json:"kind"`
	Round int      `yaml:"round,omitempty" json:"round,omitempty"`
}

// PhaseName is the room phase a step maps to.
func (s Step) PhaseName() string {
	switch s.Kind {
	case StepIntro:
		return "INTRO"
	case StepDiscuss:
		return fmt.Sprintf("ROUND%d_DISCUSS", s.Round)
	case StepInvestigate:
		return fmt.Sprintf("ROUND%d_INVESTIGATE", s.Round)
	case StepFinalVote:
		return "FINAL_VOTE"
	case StepEndbook:
		return "ENDBOOK"
	}
	return string(s.Kind)
}

// Role looks up a role by id.
func (s *Scenario) Role(id string) (Role, bool) {
	for _, r := range s.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// Part looks up a part by id.
func (s *Scenario) Part(id string) (Part, bool) {
	for _, p := range s.Parts {
		if p.ID == id {
			return p, true
		}
	}
	return Part{}, false
}

// Target looks up an investigation target by id.
func (s *Scenario) Target(id string) (Target, bool) {
	for _, t := range s.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return Target{}, false
}

// Card looks up a card in the target's pool.
func (t Target) Card(id string) (Card, bool) {
	for _, c := range t.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}
