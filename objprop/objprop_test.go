package objprop

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTable = `PIW-1   extra tokens ignored
>>Person-in-water
  1.17   0.00   8.30   0.04   0.00   4.00  -0.04   0.00   4.00
RAFT-1
>>Life-raft
  2.90  -3.95   4.20   0.96   3.36   2.40  -0.96  -3.36   2.40
`

func TestLoad(t *testing.T) {
	tbl, err := Load(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}

	raft, ok := tbl.Lookup("RAFT-1")
	if !ok {
		t.Fatal("RAFT-1 not found")
	}
	if raft.Index != 1 {
		t.Errorf("RAFT-1 index = %d, want 1", raft.Index)
	}
	if raft.Description != ">>Life-raft" {
		t.Errorf("description = %q", raft.Description)
	}

	want := [NumCoefficients]float64{2.90, -3.95, 4.20, 0.96, 3.36, 2.40, -0.96, -3.36, 2.40}
	got := [NumCoefficients]float64{
		raft.DownwindSlope, raft.DownwindOffset, raft.DownwindStd,
		raft.CrosswindRightSlope, raft.CrosswindRightOffset, raft.CrosswindRightStd,
		raft.CrosswindLeftSlope, raft.CrosswindLeftOffset, raft.CrosswindLeftStd,
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("coefficient %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOrdinalMatchesKeyLookup(t *testing.T) {
	tbl, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if tbl.Len() == 0 {
		t.Fatal("default table is empty")
	}
	for i, key := range tbl.Keys() {
		byIdx, ok := tbl.At(i)
		if !ok {
			t.Fatalf("At(%d) missing", i)
		}
		byKey, _ := tbl.Lookup(key)
		if byIdx != byKey {
			t.Errorf("At(%d) and Lookup(%q) disagree", i, key)
		}
		if tbl.Index(key) != i || byIdx.Index != i {
			t.Errorf("index of %q = %d/%d, want %d", key, tbl.Index(key), byIdx.Index, i)
		}
	}
}

func TestLoadStopsAtBlankKeyLine(t *testing.T) {
	src := sampleTable + "\nTRAILING\n>>never parsed\nnot numbers at all\n"
	tbl, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
	if _, ok := tbl.Lookup("TRAILING"); ok {
		t.Error("record after blank line should not be parsed")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{"short coefficient line", "A\n>>a\n1 2 3 4 5 6 7 8\n", 3},
		{"non-numeric token", "A\n>>a\n1 2 3 4 five 6 7 8 9\n", 3},
		{"too many coefficients", "A\n>>a\n1 2 3 4 5 6 7 8 9 10\n", 3},
		{"truncated record", "A\n>>a\n", 1},
		{"duplicate key", "A\n>>a\n1 2 3 4 5 6 7 8 9\nA\n>>b\n1 2 3 4 5 6 7 8 9\n", 4},
		{"second record bad", "A\n>>a\n1 2 3 4 5 6 7 8 9\nB\n>>b\n1 2 x 4 5 6 7 8 9\n", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", pe.Line, tt.wantLine)
			}
		})
	}
}

func TestShortLineWrapsSentinel(t *testing.T) {
	_, err := Load(strings.NewReader("A\n>>a\n1 2 3\n"))
	if !errors.Is(err, ErrTooFewCoefficients) {
		t.Errorf("error = %v, want ErrTooFewCoefficients", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.dat")
	if err := os.WriteFile(path, []byte(sampleTable), 0644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.dat")); err == nil {
		t.Error("expected error for missing file")
	}

	def, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\"): %v", err)
	}
	if def.Keys()[0] != "PIW-1" {
		t.Errorf("first default key = %q, want PIW-1", def.Keys()[0])
	}
}

func TestAtOutOfRange(t *testing.T) {
	tbl, _ := Load(strings.NewReader(sampleTable))
	for _, i := range []int{-1, 2, 100} {
		if _, ok := tbl.At(i); ok {
			t.Errorf("At(%d) should fail", i)
		}
	}
}
