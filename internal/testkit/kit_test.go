package testkit

import (
	"context"
	"testing"

	"gometa/app"
	"gometa/domain/core"
	"gometa/domain/meta"
)

func archivedResult(label string) *meta.Result {
	return &meta.Result{
		ID:        core.AnalysisID(core.NewID()),
		Label:     label,
		K:         9,
		K0:        2,
		Side:      meta.SideLeft,
		CreatedAt: core.Now(),
	}
}

func TestMemoryArchive_SaveAndGet(t *testing.T) {
	archive := NewMemoryArchive()
	ctx := context.Background()

	result := archivedResult("stored")
	if err := archive.SaveAnalysis(ctx, result); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}

	loaded, err := archive.GetAnalysis(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if loaded == nil || loaded.ID != result.ID {
		t.Errorf("Expected the stored analysis back, got %+v", loaded)
	}

	missing, err := archive.GetAnalysis(ctx, core.AnalysisID("unknown"))
	if err != nil {
		t.Fatalf("GetAnalysis for unknown ID errored: %v", err)
	}
	if missing != nil {
		t.Errorf("Unknown ID should yield nil, got %+v", missing)
	}
}

func TestMemoryArchive_SaveNilFails(t *testing.T) {
	archive := NewMemoryArchive()
	if err := archive.SaveAnalysis(context.Background(), nil); err == nil {
		t.Error("Expected an error for nil result")
	}
}

func TestMemoryArchive_ListNewestFirst(t *testing.T) {
	archive := NewMemoryArchive()
	ctx := context.Background()

	first := archivedResult("first")
	second := archivedResult("second")
	third := archivedResult("third")
	for _, r := range []*meta.Result{first, second, third} {
		if err := archive.SaveAnalysis(ctx, r); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}
	}

	summaries, err := archive.ListAnalyses(ctx, 2)
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != third.ID || summaries[1].ID != second.ID {
		t.Errorf("Expected newest-first ordering, got %q then %q",
			summaries[0].Label, summaries[1].Label)
	}
}

func TestMemoryArchive_ResaveDoesNotDuplicate(t *testing.T) {
	archive := NewMemoryArchive()
	ctx := context.Background()

	result := archivedResult("once")
	if err := archive.SaveAnalysis(ctx, result); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	result.K0 = 3
	if err := archive.SaveAnalysis(ctx, result); err != nil {
		t.Fatalf("Resave failed: %v", err)
	}

	summaries, err := archive.ListAnalyses(ctx, 0)
	if err != nil {
		t.Fatalf("ListAnalyses failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("Resaving the same ID should not duplicate, got %d entries", len(summaries))
	}
	if summaries[0].K0 != 3 {
		t.Errorf("Resave should overwrite, got K0=%d", summaries[0].K0)
	}
}

func TestTestKit_AnalysisServiceArchives(t *testing.T) {
	kit, err := NewTestKit()
	if err != nil {
		t.Fatalf("NewTestKit failed: %v", err)
	}

	set, err := kit.SampleSet()
	if err != nil {
		t.Fatalf("SampleSet failed: %v", err)
	}

	result, err := kit.AnalysisService().Run(context.Background(), app.AnalysisRequest{Set: set})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stored, err := kit.ArchiveAdapter().GetAnalysis(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("GetAnalysis failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Service and kit must share the same archive storage")
	}
	if stored.K != set.Len() {
		t.Errorf("Archived K=%d, want %d", stored.K, set.Len())
	}
}
