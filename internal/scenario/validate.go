package scenario

import (
	"errors"
	"fmt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid scenario")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the internal references of a scenario so that the game
// never meets a dangling id at runtime.
func Validate(s *Scenario) error {
	if s.ID == "" {
		return invalid("id is required")
	}
	if s.Delivery != DeliveryAuto && s.Delivery != DeliveryManual {
		return invalid("unknown delivery %q", s.Delivery)
	}
	if len(s.Roles) == 0 {
		return invalid("at least one role is required")
	}

	roles := map[string]bool{}
	for _, r := range s.Roles {
		if r.ID == "" || roles[r.ID] {
			return invalid("role ids must be unique and non-empty")
		}
		roles[r.ID] = true
	}
	if !roles[s.CulpritRole] {
		return invalid("culprit %q is not a role", s.CulpritRole)
	}

	parts := map[string]bool{}
	for _, p := range s.Parts {
		if p.ID == "" || parts[p.ID] {
			return invalid("part ids must be unique and non-empty")
		}
		parts[p.ID] = true
	}

	checkEffect := func(owner string, e Effect) error {
		if e.RevealPart != "" && !parts[e.RevealPart] {
			return invalid("%s reveals unknown part %q", owner, e.RevealPart)
		}
		if e.Rename != nil && (!roles[e.Rename.Role] || e.Rename.Name == "") {
			return invalid("%s renames unknown role %q", owner, e.Rename.Role)
		}
		return nil
	}

	cards := map[string]bool{}
	targets := map[string]bool{}
	for _, t := range s.Targets {
		if t.ID == "" || targets[t.ID] {
			return invalid("target ids must be unique and non-empty")
		}
		targets[t.ID] = true
		if len(t.Cards) == 0 {
			return invalid("target %q has no cards", t.ID)
		}
		for _, c := range t.Cards {
			if c.ID == "" || cards[c.ID] {
				return invalid("card ids must be unique and non-empty")
			}
			cards[c.ID] = true
			if err := checkEffect("card "+c.ID, c.Effect); err != nil {
				return err
			}
		}
	}

	rules := map[string]bool{}
	for _, r := range s.Rules {
		if r.ID == "" || rules[r.ID] {
			return invalid("rule ids must be unique and non-empty")
		}
		rules[r.ID] = true
		if !cards[r.Card] {
			return invalid("rule %q watches unknown card %q", r.ID, r.Card)
		}
		if r.Round < 1 {
			return invalid("rule %q needs a round", r.ID)
		}
		if err := checkEffect("rule "+r.ID, r.Effect); err != nil {
			return err
		}
	}

	return validateFlow(s.Flow, len(s.Targets) > 0)
}

func validateFlow(flow []Step, hasTargets bool) error {
	if len(flow) < 2 {
		return invalid("flow needs at least a final vote and an endbook")
	}
	if flow[len(flow)-1].Kind != StepEndbook || flow[len(flow)-2].Kind != StepFinalVote {
		return invalid("flow must end with final_vote then endbook")
	}
	seen := map[string]bool{}
	for i, step := range flow[:len(flow)-2] {
		switch step.Kind {
		case StepIntro:
			if i != 0 {
				return invalid("intro must be the first step")
			}
		case StepDiscuss:
			if step.Round < 1 {
				return invalid("discuss step needs a round")
			}
		case StepInvestigate:
			if step.Round < 1 {
				return invalid("investigate step needs a round")
			}
			if !hasTargets {
				return invalid("investigate step without targets")
			}
		default:
			return invalid("step %q is not allowed before the final vote", step.Kind)
		}
		name := step.PhaseName()
		if seen[name] {
			return invalid("phase %s appears twice", name)
		}
		seen[name] = true
	}
	return nil
}
