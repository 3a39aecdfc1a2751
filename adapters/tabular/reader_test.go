package tabular

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gometa/domain/core"
	"gometa/internal/testkit"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestReader_ReadsCSV(t *testing.T) {
	path := writeTempFile(t, "magnesium.csv",
		"label,effect,se\nAlpha,0.45,0.05\nBeta,0.90,0.25\nGamma,1.30,0.35\n")

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if set.Len() != 3 {
		t.Fatalf("Expected 3 studies, got %d", set.Len())
	}
	if set.Label != "magnesium" {
		t.Errorf("Set label should come from the file name, got %q", set.Label)
	}
	first := set.Studies[0]
	if first.Label != "Alpha" || first.Effect != 0.45 || first.SE != 0.05 {
		t.Errorf("First study mismatch: %+v", first)
	}
}

func TestReader_HeaderSynonymsAndExtraColumns(t *testing.T) {
	path := writeTempFile(t, "synonyms.csv",
		"Study,Year,TE,seTE,Country\nSmith 1990,1990,0.2,0.1,UK\nJones 1992,1992,0.4,0.2,US\n")

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 studies, got %d", set.Len())
	}
	if set.Studies[0].Label != "Smith 1990" {
		t.Errorf("Label column not detected, got %q", set.Studies[0].Label)
	}
	if set.Studies[1].Effect != 0.4 || set.Studies[1].SE != 0.2 {
		t.Errorf("TE/seTE columns not detected: %+v", set.Studies[1])
	}
}

func TestReader_NoLabelColumnDefaultsToNumbers(t *testing.T) {
	path := writeTempFile(t, "bare.csv", "effect,se\n0.1,0.05\n0.2,0.06\n")

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if set.Studies[0].Label != "1" || set.Studies[1].Label != "2" {
		t.Errorf("Expected numbered labels, got %q and %q",
			set.Studies[0].Label, set.Studies[1].Label)
	}
}

func TestReader_MissingColumnsFail(t *testing.T) {
	noSE := writeTempFile(t, "nose.csv", "label,effect\nA,0.1\n")
	if _, err := NewReader().Read(context.Background(), noSE); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing se column, got %v", err)
	}

	noEffect := writeTempFile(t, "noeffect.csv", "label,se\nA,0.1\n")
	if _, err := NewReader().Read(context.Background(), noEffect); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing effect column, got %v", err)
	}
}

func TestReader_UnreadableCellsStayNonEstimable(t *testing.T) {
	path := writeTempFile(t, "dirty.csv",
		"label,effect,se\nA,0.1,0.05\nB,n/a,0.06\nC,0.3,0.07\n")

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Bad cells must not drop rows: got %d studies", set.Len())
	}
	if len(set.Estimable()) != 2 {
		t.Errorf("Expected 2 estimable studies, got %d", len(set.Estimable()))
	}
	if !math.IsNaN(set.Studies[1].Effect) {
		t.Errorf("Unreadable effect should be NaN, got %v", set.Studies[1].Effect)
	}
}

func TestReader_BlankRowsSkipped(t *testing.T) {
	path := writeTempFile(t, "gaps.csv", "effect,se\n0.1,0.05\n,\n0.2,0.06\n")

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("Expected blank row to be skipped, got %d studies", set.Len())
	}
}

func TestReader_HeaderOnlyFails(t *testing.T) {
	path := writeTempFile(t, "empty.csv", "label,effect,se\n")
	if _, err := NewReader().Read(context.Background(), path); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for header-only file, got %v", err)
	}
}

func TestReader_MissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.csv")
	if _, err := NewReader().Read(context.Background(), path); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestReader_UnsupportedExtensionFails(t *testing.T) {
	path := writeTempFile(t, "data.txt", "label,effect,se\nA,0.1,0.05\n")
	if _, err := NewReader().Read(context.Background(), path); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unsupported extension, got %v", err)
	}
}

func TestReader_ReadsGeneratedCSV(t *testing.T) {
	ds, err := testkit.NewFunnelGenerator(testkit.DefaultFunnelConfig()).Generate()
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "funnel.csv")
	if err := testkit.WriteCSV(path, ds); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	assertMatchesObserved(t, set.Len(), ds.Observed.Len())
	for i, st := range set.Studies {
		want := ds.Observed.Studies[i]
		if st.Label != want.Label {
			t.Errorf("Study %d label %q, want %q", i, st.Label, want.Label)
		}
		if math.Abs(st.Effect-want.Effect) > 1e-6 {
			t.Errorf("Study %d effect %.8f, want %.8f", i, st.Effect, want.Effect)
		}
		if math.Abs(st.SE-want.SE) > 1e-6 {
			t.Errorf("Study %d se %.8f, want %.8f", i, st.SE, want.SE)
		}
	}
}

func TestReader_ReadsGeneratedXLSX(t *testing.T) {
	ds, err := testkit.NewFunnelGenerator(testkit.DefaultFunnelConfig()).Generate()
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "funnel.xlsx")
	if err := testkit.WriteXLSX(path, ds); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	set, err := NewReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	assertMatchesObserved(t, set.Len(), ds.Observed.Len())
	if math.Abs(set.Studies[0].Effect-ds.Observed.Studies[0].Effect) > 1e-6 {
		t.Errorf("First effect %.8f, want %.8f",
			set.Studies[0].Effect, ds.Observed.Studies[0].Effect)
	}
}

func assertMatchesObserved(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("Expected %d studies, got %d", want, got)
	}
}
