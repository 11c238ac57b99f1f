package taskid

import "testing"

func TestNumberToLettersRoundTrip(t *testing.T) {
	cases := []int{0, 1, 2, 25, 26, 27, 51, 52, 701, 702, 703, 1000}
	for _, n := range cases {
		letters := NumberToLetters(n)
		got, err := LettersToNumber(letters)
		if err != nil {
			t.Fatalf("LettersToNumber(%q) error: %v", letters, err)
		}
		if got != n {
			t.Errorf("round trip mismatch: n=%d letters=%q got=%d", n, letters, got)
		}
	}
}

func TestNumberToLettersKnownValues(t *testing.T) {
	tests := map[int]string{
		0:  "A",
		25: "Z",
		26: "AA",
		27: "AB",
		51: "AZ",
		52: "BA",
	}
	for n, want := range tests {
		if got := NumberToLetters(n); got != want {
			t.Errorf("NumberToLetters(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"A", true},
		{"AA", true},
		{"A-B", true},
		{"A-BCDE", true},
		{"A-BCDE-F", true},
		{"", false},
		{"a", false},
		{"A1", false},
		{"-A", false},
		{"A-", false},
		{"A--B", false},
		{"A-bC", false},
	}
	for _, tc := range tests {
		if got := Validate(tc.id); got != tc.valid {
			t.Errorf("Validate(%q) = %v, want %v", tc.id, got, tc.valid)
		}
	}
}

func TestValidateSubtaskID(t *testing.T) {
	if !ValidateSubtaskID("A-BCDE", "A") {
		t.Error("expected A-BCDE to be a valid subtask of A")
	}
	if ValidateSubtaskID("A-BCDE-F", "A") {
		t.Error("expected A-BCDE-F to NOT be a direct subtask of A (two extra segments)")
	}
	if ValidateSubtaskID("B-X", "A") {
		t.Error("expected B-X to not be a subtask of A")
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("A-BCDE")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if p.RootID != "A" || p.Depth != 1 || len(p.Segments) != 1 || p.Segments[0] != "BCDE" {
		t.Errorf("Parse(%q) = %+v, want root=A depth=1 segments=[BCDE]", "A-BCDE", p)
	}

	if _, err := Parse("invalid--id"); err == nil {
		t.Error("expected error parsing invalid id")
	}
}

func TestParentOf(t *testing.T) {
	parent, err := ParentOf("A-B-C")
	if err != nil {
		t.Fatalf("ParentOf error: %v", err)
	}
	if parent != "A-B" {
		t.Errorf("ParentOf(A-B-C) = %q, want A-B", parent)
	}

	root, err := ParentOf("A")
	if err != nil {
		t.Fatalf("ParentOf error: %v", err)
	}
	if root != "" {
		t.Errorf("ParentOf(A) = %q, want empty", root)
	}
}

func TestChild(t *testing.T) {
	if got := Child("A", 0); got != "A-A" {
		t.Errorf("Child(A, 0) = %q, want A-A", got)
	}
	if got := Child("A", 1); got != "A-B" {
		t.Errorf("Child(A, 1) = %q, want A-B", got)
	}
}
