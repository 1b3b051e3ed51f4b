// Package synth renders the knowledge file from a session's atoms. It
// makes no model call and holds no state: the same atom set always
// projects to the same markdown.
package synth

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/raidme/raidme/internal/models"
)

// SessionMeta carries the header fields that accompany the rendered
// atoms but are not themselves atoms.
type SessionMeta struct {
	RepoRoot string
	Revision string
}

var sectionTitles = map[models.AtomCategory]string{
	models.AtomCategoryOverview:   "Overview",
	models.AtomCategoryStructure:  "Project Structure",
	models.AtomCategoryComponent:  "Components",
	models.AtomCategoryDataflow:   "Data Flow",
	models.AtomCategoryInterface:  "Interfaces",
	models.AtomCategoryDeployment: "Deployment & Diagrams",
	models.AtomCategoryConvention: "Conventions",
	models.AtomCategoryRisk:       "Risks",
}

// headerTemplate is data, not code: the fixed document skeleton lives
// here beside the atom schema, rendered once per knowledge file.
const headerTemplate = `# {{.Title}}

_Repository: {{.RepoRoot}} @ {{.Revision}}_

`

type headerData struct {
	Title    string
	RepoRoot string
	Revision string
}

var headerTmpl = template.Must(template.New("header").Parse(headerTemplate))

// Render projects atoms into the knowledge file's markdown. Sections
// map one to one onto models.SynthesisOrder; the overview section
// renders at the top level (`# Overview`) and every other populated
// category renders as a `##` section beneath it. Within a section
// atoms are ordered by (subcategory, relevance desc, created_at asc).
// Empty categories are omitted entirely, so two sessions with the
// same atoms in a different insertion order still produce
// byte-identical output.
func Render(atoms []models.Atom, meta SessionMeta) string {
	var b strings.Builder

	_ = headerTmpl.Execute(&b, headerData{
		Title:    sectionTitles[models.AtomCategoryOverview],
		RepoRoot: meta.RepoRoot,
		Revision: meta.Revision,
	})

	byCategory := groupByCategory(atoms)

	for _, cat := range models.SynthesisOrder {
		group := byCategory[cat]
		if len(group) == 0 {
			continue
		}
		if cat == models.AtomCategoryOverview {
			renderOverviewBody(&b, group)
			continue
		}
		renderSection(&b, sectionTitles[cat], group)
	}

	return b.String()
}

func groupByCategory(atoms []models.Atom) map[models.AtomCategory][]models.Atom {
	out := make(map[models.AtomCategory][]models.Atom, len(models.SynthesisOrder))
	for _, a := range atoms {
		out[a.Category] = append(out[a.Category], a)
	}
	for cat := range out {
		sortAtoms(out[cat])
	}
	return out
}

// sortAtoms orders a section's atoms by (subcategory, relevance desc,
// created_at asc), the fixed ordering Render depends on for
// deterministic output.
func sortAtoms(atoms []models.Atom) {
	sort.SliceStable(atoms, func(i, j int) bool {
		if atoms[i].Subcategory != atoms[j].Subcategory {
			return atoms[i].Subcategory < atoms[j].Subcategory
		}
		if atoms[i].Relevance != atoms[j].Relevance {
			return atoms[i].Relevance > atoms[j].Relevance
		}
		return atoms[i].CreatedAt.Before(atoms[j].CreatedAt)
	})
}

// renderOverviewBody writes the overview atoms directly under the top
// level `# Overview` heading produced by the header template, rather
// than nesting them under a second heading of their own.
func renderOverviewBody(b *strings.Builder, atoms []models.Atom) {
	writeAtoms(b, atoms)
}

func renderSection(b *strings.Builder, title string, atoms []models.Atom) {
	fmt.Fprintf(b, "## %s\n\n", title)
	writeAtoms(b, atoms)
}

func writeAtoms(b *strings.Builder, atoms []models.Atom) {
	for _, a := range atoms {
		if a.Subcategory != "" {
			fmt.Fprintf(b, "### %s — %s\n\n", a.Subcategory, a.Title)
		} else {
			fmt.Fprintf(b, "### %s\n\n", a.Title)
		}
		b.WriteString(strings.TrimRight(a.Content, "\n"))
		b.WriteString("\n\n")
	}
}
