package value

import "testing"

func TestEqualCrossesIntNum(t *testing.T) {
	if !Equal(Int(3), Num(3.0)) {
		t.Fatal("Equal(3, 3.0) = false, want true")
	}
	if Equal(Int(3), Num(3.5)) {
		t.Fatal("Equal(3, 3.5) = true, want false")
	}
}

func TestEqualDeepAggregates(t *testing.T) {
	a := List(NewList([]Value{Int(1), Str(NewStr("x"))}))
	b := List(NewList([]Value{Int(1), Str(NewStr("x"))}))
	if !Equal(a, b) {
		t.Fatal("deep-equal lists compared unequal")
	}
	c := List(NewList([]Value{Int(1), Str(NewStr("y"))}))
	if Equal(a, c) {
		t.Fatal("different lists compared equal")
	}
}

func TestMapLastWriteWinsPreservesOrder(t *testing.T) {
	m := NewMap()
	m.Set(Str(NewStr("a")), Int(1))
	m.Set(Str(NewStr("b")), Int(2))
	m.Set(Str(NewStr("a")), Int(3))

	if len(m.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(m.Entries))
	}
	if m.Entries[0].Key.StrObj().S != "a" || m.Entries[0].Value.I != 3 {
		t.Fatalf("first entry = %+v, want a:3", m.Entries[0])
	}
	if m.Entries[1].Key.StrObj().S != "b" {
		t.Fatalf("second entry key = %s, want b", m.Entries[1].Key.StrObj().S)
	}
}

func TestCompareOrdersStringsAndLists(t *testing.T) {
	c, ok := Compare(Str(NewStr("a")), Str(NewStr("b")))
	if !ok || c >= 0 {
		t.Fatalf("Compare(a,b) = (%d,%v), want negative,true", c, ok)
	}
	c, ok = Compare(Tuple(NewTuple([]Value{Int(1), Int(2)})), Tuple(NewTuple([]Value{Int(1), Int(3)})))
	if !ok || c >= 0 {
		t.Fatalf("Compare(tuple,tuple) = (%d,%v), want negative,true", c, ok)
	}
	_, ok = Compare(Int(1), Str(NewStr("x")))
	if ok {
		t.Fatal("Compare(int,str) should not be ordered")
	}
}

func TestHeapCollectsUnreachableAndSurvivesCycles(t *testing.T) {
	h := NewHeap(1)

	reachable := NewList(nil)
	h.Track(reachable, 1)

	unreachable := NewList(nil)
	h.Track(unreachable, 1)

	// Build a reference cycle: a list containing itself, reachable as a
	// GC root so sweep must still keep it alive.
	cyclic := NewList(nil)
	cyclic.Elems = []Value{List(cyclic)}
	h.Track(cyclic, 1)

	roots := []Value{List(reachable), List(cyclic)}
	h.Collect(roots)

	foundReachable, foundCyclic, foundUnreachable := false, false, false
	for _, o := range h.objectsForTest() {
		switch o {
		case Object(reachable):
			foundReachable = true
		case Object(cyclic):
			foundCyclic = true
		case Object(unreachable):
			foundUnreachable = true
		}
	}
	if !foundReachable {
		t.Error("reachable object was swept")
	}
	if !foundCyclic {
		t.Error("cyclic-but-rooted object was swept")
	}
	if foundUnreachable {
		t.Error("unreachable object survived sweep")
	}
}

func (h *Heap) objectsForTest() []Object { return h.objects }
