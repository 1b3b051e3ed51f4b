package executor

import (
	"encoding/json"
	"fmt"

	"github.com/raidme/raidme/internal/models"
)

// Envelope is the model reply's structured shape.
type Envelope struct {
	Summary string         `json:"summary"`
	Atoms   []EnvelopeAtom `json:"atoms"`
}

// EnvelopeAtom is one atom as it appears in a model reply, before
// validation against the closed category set and relevance range.
type EnvelopeAtom struct {
	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Relevance   float64 `json:"relevance"`
}

// ParseEnvelope decodes and validates a model reply. Malformed JSON,
// an unknown category, or an out-of-range relevance value all trigger
// the caller's parse-repair retry.
func ParseEnvelope(text string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, fmt.Errorf("decode reply envelope: %w", err)
	}
	if env.Summary == "" {
		return nil, fmt.Errorf("reply envelope missing summary")
	}
	for i, atom := range env.Atoms {
		if !models.ValidAtomCategories[models.AtomCategory(atom.Category)] {
			return nil, fmt.Errorf("atom %d: unknown category %q", i, atom.Category)
		}
		if atom.Title == "" {
			return nil, fmt.Errorf("atom %d: missing title", i)
		}
		if atom.Relevance < 0.0 || atom.Relevance > 1.0 {
			return nil, fmt.Errorf("atom %d: relevance %v out of range [0,1]", i, atom.Relevance)
		}
	}
	return &env, nil
}

// ToModels converts the envelope's atoms into store-ready models.Atom
// values, stamped with the owning session id.
func (e *Envelope) ToModels(sessionID string) []models.Atom {
	out := make([]models.Atom, 0, len(e.Atoms))
	for _, a := range e.Atoms {
		sub := ""
		if a.Subcategory != nil {
			sub = *a.Subcategory
		}
		out = append(out, models.Atom{
			SessionID:   sessionID,
			Category:    models.AtomCategory(a.Category),
			Subcategory: sub,
			Title:       a.Title,
			Content:     a.Content,
			Relevance:   a.Relevance,
		})
	}
	return out
}
