package unionfind

import "testing"

func TestUnionConnected(t *testing.T) {
	uf := New[string]()
	uf.Union("a", "b")
	uf.Union("b", "c")

	if !uf.Connected("a", "c") {
		t.Fatal("expected a and c to be connected transitively")
	}
	if uf.Connected("a", "d") {
		t.Fatal("expected a and d (never unioned) not to be connected")
	}
}

func TestGroupsPartition(t *testing.T) {
	uf := New[int]()
	for _, p := range [][2]int{{1, 2}, {3, 4}, {2, 3}, {5, 5}} {
		uf.Union(p[0], p[1])
	}

	groups := uf.Groups()
	seen := make(map[int]bool)
	for _, members := range groups {
		for _, m := range members {
			if seen[m] {
				t.Fatalf("element %d appears in more than one group", m)
			}
			seen[m] = true
		}
	}
	for _, k := range []int{1, 2, 3, 4, 5} {
		if !seen[k] {
			t.Fatalf("element %d missing from groups", k)
		}
	}
	// 1,2,3,4 should all be in the same group; 5 is its own singleton.
	if !uf.Connected(1, 4) {
		t.Fatal("expected 1 and 4 connected")
	}
	if uf.Connected(1, 5) {
		t.Fatal("expected 5 to remain its own group")
	}
}

func TestUnionReturnsFalseWhenAlreadyConnected(t *testing.T) {
	uf := New[int]()
	if !uf.Union(1, 2) {
		t.Fatal("expected first union to report true")
	}
	if uf.Union(1, 2) {
		t.Fatal("expected second union of same pair to report false")
	}
}

func TestFindAutoCreates(t *testing.T) {
	uf := New[string]()
	if uf.Len() != 0 {
		t.Fatal("expected empty structure initially")
	}
	root := uf.Find("x")
	if root != "x" {
		t.Fatalf("expected singleton root x, got %v", root)
	}
	if uf.Len() != 1 {
		t.Fatalf("expected 1 element after Find, got %d", uf.Len())
	}
}
