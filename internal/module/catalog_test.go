package module

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr string
	}{
		{name: "valid", desc: Describe("A", Requires("R1"), Provides("R2"))},
		{name: "self dependency", desc: Describe("A", Requires("R"), Provides("R"))},
		{name: "missing name", desc: Describe(" ", Provides("R")), wantErr: "name is required"},
		{name: "empty representation", desc: Describe("A", Provides("")), wantErr: "no representation"},
		{name: "unknown role", desc: Descriptor{Name: "A", Requirements: []Requirement{{Representation: "R", Role: "uses"}}}, wantErr: "unknown role"},
		{name: "duplicate entry", desc: Describe("A", Provides("R"), Provides("R")), wantErr: "declares provides R twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDescriptorRolesKeepDeclarationOrder(t *testing.T) {
	desc := Describe("A", Requires("B"), Provides("X"), Requires("A"), Provides("Y"))
	if diff := cmp.Diff([]string{"B", "A"}, desc.Required()); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, desc.Provided()); diff != "" {
		t.Fatalf("provided mismatch (-want +got):\n%s", diff)
	}
	if !desc.Requires("A") || desc.Provides("A") {
		t.Fatalf("role lookup mismatch for A")
	}
}

func TestCatalogSortsNamesAndCopies(t *testing.T) {
	cat, err := NewCatalog([]Descriptor{
		Describe("Zeta", Provides("Z")),
		Describe("Alpha", Provides("A")),
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if diff := cmp.Diff([]string{"Alpha", "Zeta"}, cat.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if idx, ok := cat.Index("Zeta"); !ok || idx != 1 {
		t.Fatalf("index of Zeta = %d, %v", idx, ok)
	}
	desc, ok := cat.Lookup("Alpha")
	if !ok {
		t.Fatalf("expected Alpha in catalog")
	}
	desc.Requirements[0].Representation = "mutated"
	again, _ := cat.Lookup("Alpha")
	if again.Requirements[0].Representation != "A" {
		t.Fatalf("catalog must not share descriptor storage with callers")
	}
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Descriptor{Describe("A", Provides("X")), Describe("A", Provides("Y"))})
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRegistryCatalogIsDetached(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Describe("A", Provides("X")))
	cat, err := reg.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	reg.MustRegister(Describe("B", Provides("Y")))
	if cat.Len() != 1 {
		t.Fatalf("expected frozen catalog with 1 module, got %d", cat.Len())
	}
	if diff := cmp.Diff([]string{"A", "B"}, reg.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if err := reg.Register(Describe("A", Provides("Z"))); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestTypeComparators(t *testing.T) {
	table := TypeTable{"UpperBall": "Ball", "Ball": "Ball", "Image": "CameraImage"}
	if !table.Equivalent("UpperBall", "Ball") {
		t.Fatalf("expected alias types to match")
	}
	if table.Equivalent("UpperBall", "Image") {
		t.Fatalf("expected mismatching types")
	}
	if !table.Equivalent("Unknown", "Ball") {
		t.Fatalf("undeclared types must be treated as compatible")
	}
	cat := MustCatalog(nil, WithComparator(ComparatorFunc(func(a, b string) bool { return false })))
	if cat.Equivalent("X", "X") {
		t.Fatalf("expected custom comparator to be used")
	}
}

func TestCatalogRequiredByAny(t *testing.T) {
	cat := MustCatalog([]Descriptor{
		Describe("A", Requires("UpperImage"), Provides("Ball")),
	})
	if !cat.RequiredByAny("Image", "UpperImage") {
		t.Fatalf("expected UpperImage to be required")
	}
	if cat.RequiredByAny("Ball") {
		t.Fatalf("Ball is only provided")
	}
}

func TestParseCatalogYAML(t *testing.T) {
	data := []byte(strings.TrimSpace(`
modules:
  - name: BallPerceptor
    requires: [CameraImage, UpperFieldBoundary]
    provides: [BallPercept]
  - name: FieldBoundaryProvider
    provides: [FieldBoundary]
types:
  UpperFieldBoundary: FieldBoundary
  FieldBoundary: FieldBoundary
  CameraImage: Image
`))
	cat, err := ParseCatalogYAML(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	desc, ok := cat.Lookup("BallPerceptor")
	if !ok {
		t.Fatalf("missing BallPerceptor")
	}
	want := []Requirement{Requires("CameraImage"), Requires("UpperFieldBoundary"), Provides("BallPercept")}
	if diff := cmp.Diff(want, desc.Requirements); diff != "" {
		t.Fatalf("requirements mismatch (-want +got):\n%s", diff)
	}
	if !cat.Equivalent("UpperFieldBoundary", "FieldBoundary") {
		t.Fatalf("expected type table equivalence")
	}
	if cat.Equivalent("CameraImage", "FieldBoundary") {
		t.Fatalf("expected type table mismatch")
	}
}

func TestParseCatalogYAMLErrors(t *testing.T) {
	if _, err := ParseCatalogYAML([]byte("  ")); err == nil {
		t.Fatalf("expected empty payload error")
	}
	if _, err := ParseCatalogYAML([]byte("modules:\n  - provides: [X]\n")); err == nil {
		t.Fatalf("expected missing name error")
	}
	dup := "modules:\n  - {name: A, provides: [X]}\n  - {name: A, provides: [Y]}\n"
	if _, err := ParseCatalogYAML([]byte(dup)); err == nil || !strings.Contains(err.Error(), "catalog entry 1") {
		t.Fatalf("expected duplicate entry error, got %v", err)
	}
}
