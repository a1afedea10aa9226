package driver

import "testing"

func TestRegisterAndResolveExactTuple(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Info{Name: "iperl", Detections: []Tuple{{Mfct: 0x5068, Media: 0x16, Version: 0x68}}}); err != nil {
		t.Fatal(err)
	}
	info, ok := r.Resolve(0x5068, 0x16, 0x68)
	if !ok || info.Name != "iperl" {
		t.Fatalf("Resolve = %+v, %v", info, ok)
	}
}

func TestResolveUnknownFallsBack(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Resolve(0x1234, 0x16, 0x01); ok {
		t.Fatal("expected no match in empty registry")
	}
}

func TestResolveMostSpecificWildcardWins(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(Info{Name: "generic", Detections: []Tuple{{Mfct: 0x1111, Media: Wildcard, Version: Wildcard}}}))
	must(t, r.Register(Info{Name: "specific", Detections: []Tuple{{Mfct: 0x1111, Media: 0x16, Version: 0x01}}}))

	info, ok := r.Resolve(0x1111, 0x16, 0x01)
	if !ok || info.Name != "specific" {
		t.Fatalf("expected specific driver to win, got %+v", info)
	}
	info, ok = r.Resolve(0x1111, 0x99, 0x99)
	if !ok || info.Name != "generic" {
		t.Fatalf("expected generic wildcard fallback, got %+v", info)
	}
}

func TestRegisterConflictingTupleErrors(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(Info{Name: "a", Detections: []Tuple{{Mfct: 0x2222, Media: 0x16, Version: 0x01}}}))
	if err := r.Register(Info{Name: "b", Detections: []Tuple{{Mfct: 0x2222, Media: 0x16, Version: 0x01}}}); err == nil {
		t.Fatal("expected conflict error for identical tuple under a different name")
	}
}

func TestRegisterSameNameIsIdempotent(t *testing.T) {
	r := NewRegistry()
	must(t, r.Register(Info{Name: "a", Detections: []Tuple{{Mfct: 0x3333, Media: 0x16, Version: 0x01}}}))
	if err := r.Register(Info{Name: "a", Detections: []Tuple{{Mfct: 0x3333, Media: 0x16, Version: 0x02}}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Resolve(0x3333, 0x16, 0x01); ok {
		t.Fatal("stale detection tuple from first registration should be gone")
	}
	if _, ok := r.Resolve(0x3333, 0x16, 0x02); !ok {
		t.Fatal("updated detection tuple should resolve")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
