package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raidme/raidme/internal/models"
)

func sampleAtoms() []models.Atom {
	now := time.Now()
	return []models.Atom{
		{ID: 1, Category: models.AtomCategoryRisk, Title: "risk1", Content: "x", Relevance: 0.9, CreatedAt: now},
		{ID: 2, Category: models.AtomCategoryOverview, Title: "low", Content: "y", Relevance: 0.1, CreatedAt: now},
		{ID: 3, Category: models.AtomCategoryOverview, Title: "high", Content: "z", Relevance: 0.8, CreatedAt: now.Add(time.Second)},
	}
}

func TestCurateContext_OrdersByPriorityThenRelevance(t *testing.T) {
	text, ids := CurateContext(sampleAtoms(), 0)
	require.Equal(t, []int64{3, 2, 1}, ids)
	require.Contains(t, text, "high")
}

func TestCurateContext_RespectsBudget(t *testing.T) {
	atoms := sampleAtoms()
	_, idsFull := CurateContext(atoms, 0)
	require.Len(t, idsFull, 3)

	_, idsBounded := CurateContext(atoms, 1)
	require.Less(t, len(idsBounded), len(idsFull))
}

func TestBuild_FingerprintStableForIdenticalInputs(t *testing.T) {
	atoms := sampleAtoms()
	a1 := Build(models.StepKindRootFiles, "data", atoms, 10000)
	a2 := Build(models.StepKindRootFiles, "data", atoms, 10000)
	require.Equal(t, a1.InputFingerprint, a2.InputFingerprint)
	require.Equal(t, a1.Text, a2.Text)
}

func TestBuild_FingerprintChangesWithData(t *testing.T) {
	atoms := sampleAtoms()
	a1 := Build(models.StepKindRootFiles, "data-v1", atoms, 10000)
	a2 := Build(models.StepKindRootFiles, "data-v2", atoms, 10000)
	require.NotEqual(t, a1.InputFingerprint, a2.InputFingerprint)
}

func TestBuild_RespectsTokenCeiling(t *testing.T) {
	atoms := sampleAtoms()
	assembled := Build(models.StepKindRootFiles, "data", atoms, 50)
	require.LessOrEqual(t, len(assembled.Text), 50*bytesPerToken)
}

func TestFingerprint_ChangesWithSelection(t *testing.T) {
	f1 := Fingerprint("same text", []int64{1, 2})
	f2 := Fingerprint("same text", []int64{1, 3})
	require.NotEqual(t, f1, f2)
}
