// Package prompt assembles the four-part model prompt for a step and
// curates the rolling knowledge-atom context that feeds it, deterministically
// enough that identical inputs always produce an identical input_fingerprint.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/slices"

	"github.com/raidme/raidme/internal/models"
)

// bytesPerToken is the fixed character-to-token estimate used to enforce
// the configured token ceiling with a character-based truncation.
const bytesPerToken = 4

// systemPreamble is the fixed instruction preface every prompt carries,
// directing the model to reply with the structured envelope.
const systemPreamble = `You are analyzing a software repository to extract durable knowledge atoms.
Respond with a single JSON object of this exact shape:
{"summary": "<string>", "atoms": [{"category": "overview|structure|component|dataflow|interface|deployment|convention|risk", "subcategory": "<string|null>", "title": "<string>", "content": "<markdown>", "relevance": <0.0-1.0>}]}
Do not include any text outside the JSON object.`

// Instructions maps each step kind to its fixed, kind-specific instruction
// text, part (c) of the four-part prompt.
var Instructions = map[models.StepKind]string{
	models.StepKindGlobalHints: "Incorporate the user-supplied hints below into initial orientation atoms (category overview).",
	models.StepKindRootFiles:   "Summarize the repository's root-level files: purpose, key manifests, entry points.",
	models.StepKindDocs:        "Summarize the repository's documentation: README, CHANGELOG, and docs/ content.",
	models.StepKindDirLevel:    "Summarize this directory level as a whole: directory names and file counts.",
	models.StepKindDirNode:     "Summarize this specific directory's contents and responsibility within the project.",
	models.StepKindDiagrams:    "Produce diagram source blocks (e.g. mermaid) describing component relationships, as category deployment atoms.",
	models.StepKindFinalize:    "Review the accumulated knowledge atoms for consistency; emit any missing cross-cutting atoms.",
}

// Assembled is the built prompt plus the stable selection record needed to
// reproduce it for fingerprinting.
type Assembled struct {
	Text             string
	SelectedAtomIDs  []int64
	InputFingerprint string
}

// Build assembles the four-part prompt for a step: system preamble, curated
// rolling context, step-kind instruction, and raw step data. The context
// selection is recorded alongside the prompt so re-deriving the same
// fingerprint never depends on map iteration order.
func Build(kind models.StepKind, rawData string, atoms []models.Atom, tokenCeiling int) Assembled {
	curated, ids := CurateContext(atoms, tokenCeiling*bytesPerToken/2)

	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n## Context\n")
	b.WriteString(curated)
	b.WriteString("\n\n## Instruction\n")
	b.WriteString(Instructions[kind])
	b.WriteString("\n\n## Data\n")
	b.WriteString(rawData)

	text := truncateToCeiling(b.String(), tokenCeiling*bytesPerToken)

	return Assembled{
		Text:             text,
		SelectedAtomIDs:  ids,
		InputFingerprint: Fingerprint(text, ids),
	}
}

// CurateContext selects atoms by category priority, then relevance
// descending, then created_at ascending, rendering them as markdown bullets
// until budgetBytes is exhausted. Returns the rendered text and the ordered
// list of atom IDs actually included, for fingerprint stability.
func CurateContext(atoms []models.Atom, budgetBytes int) (string, []int64) {
	priority := map[models.AtomCategory]int{}
	for i, cat := range models.ContextPriority {
		priority[cat] = i
	}

	ordered := make([]models.Atom, len(atoms))
	copy(ordered, atoms)
	slices.SortFunc(ordered, func(a, b models.Atom) int {
		pa, pb := priority[a.Category], priority[b.Category]
		if pa != pb {
			return pa - pb
		}
		if a.Relevance != b.Relevance {
			if a.Relevance > b.Relevance {
				return -1
			}
			return 1
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	selection := orderedmap.New[int64, models.Atom]()
	var used int
	for _, atom := range ordered {
		line := fmt.Sprintf("- [%s/%s] %s: %s\n", atom.Category, atom.Subcategory, atom.Title, atom.Content)
		if budgetBytes > 0 && used+len(line) > budgetBytes {
			continue
		}
		selection.Set(atom.ID, atom)
		used += len(line)
	}

	var b strings.Builder
	var ids []int64
	for pair := selection.Oldest(); pair != nil; pair = pair.Next() {
		atom := pair.Value
		fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", atom.Category, atom.Subcategory, atom.Title, atom.Content)
		ids = append(ids, pair.Key)
	}
	return b.String(), ids
}

// truncateToCeiling applies the fixed character-based truncation for the
// configured token ceiling: character count must stay at or below
// tokenCeiling * bytesPerToken.
func truncateToCeiling(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	return text[:maxBytes]
}

// Fingerprint derives the stable input_fingerprint for a built prompt: a
// sha256 over the prompt text and the ordered selection id list, so
// identical inputs and identical context always produce identical
// fingerprints, and any byte difference changes it.
func Fingerprint(text string, selectedAtomIDs []int64) string {
	payload, _ := json.Marshal(struct {
		Text  string  `json:"text"`
		Atoms []int64 `json:"atoms"`
	}{Text: text, Atoms: selectedAtomIDs})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
