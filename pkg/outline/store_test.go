package outline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func equalOutlines(a, b []Outline) bool {
	return slices.EqualFunc(a, b, func(x, y Outline) bool { return slices.Equal(x, y) })
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	outlines := []Outline{
		{"introduce_character", "describe_setting", "add_obstacle_towards_major_goal"},
		{"introduce_character:cold", "resolve_conflict"},
		{},
		{"a:b:c"},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, outlines); err != nil {
		t.Fatal(err)
	}
	want := "introduce_character,describe_setting,add_obstacle_towards_major_goal\n" +
		"introduce_character:cold,resolve_conflict\n" +
		"\n" +
		"a:b:c\n"
	if buf.String() != want {
		t.Errorf("Encode() = %q, want %q", buf.String(), want)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !equalOutlines(got, outlines) {
		t.Fatalf("Decode() = %v, want %v", got, outlines)
	}

	var again bytes.Buffer
	if err := Encode(&again, got); err != nil {
		t.Fatal(err)
	}
	if again.String() != want {
		t.Errorf("re-encoded = %q", again.String())
	}
}

func TestEncodeRejectsInvalidLabels(t *testing.T) {
	for _, l := range []Label{"a,b", "", "a::b", "Upper", "a b"} {
		var buf bytes.Buffer
		err := Encode(&buf, []Outline{{"ok"}, {"fine", l}})
		if err == nil {
			t.Errorf("Encode(%q) expected error", l)
		}
		if buf.String() != "" {
			t.Errorf("Encode(%q) wrote %q before failing", l, buf.String())
		}
	}
}

func TestEncodeRejectsInvalidLabelAfterLargeInput(t *testing.T) {
	outlines := make([]Outline, 0, 1001)
	for range 1000 {
		outlines = append(outlines, Outline{"introduce_character", "describe_setting"})
	}
	outlines = append(outlines, Outline{"Bad"})

	var buf bytes.Buffer
	if err := Encode(&buf, outlines); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("Encode wrote %d bytes before failing", buf.Len())
	}
}

func TestDecodeLongLine(t *testing.T) {
	long := strings.TrimSuffix(strings.Repeat("describe_setting,", 8000), ",")
	input := "introduce_character\n" + long + "\nresolve_conflict\n"

	got, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d outlines, want 3", len(got))
	}
	if len(got[1]) != 8000 || got[2][0] != "resolve_conflict" {
		t.Errorf("long line decoded to %d scenes, last outline %v", len(got[1]), got[2])
	}
}

func TestDecode(t *testing.T) {
	input := strings.Join([]string{
		"# plotweave outlines v1",
		"introduce_character, describe_setting",
		"['introduce_character:cold', 'resolve_conflict']",
		"bad label,x",
		"[unterminated",
		"a,,b",
		"resolve_conflict\r",
	}, "\n")

	got, err := Decode(strings.NewReader(input))
	want := []Outline{
		{"introduce_character", "describe_setting"},
		{"introduce_character:cold", "resolve_conflict"},
		{"resolve_conflict"},
	}
	if !equalOutlines(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
	if err == nil {
		t.Fatal("expected line errors")
	}

	var lines []int
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var le *LineError
		if !errors.As(e, &le) {
			t.Fatalf("error %v is not a *LineError", e)
		}
		lines = append(lines, le.Line)
	}
	if !slices.Equal(lines, []int{4, 5, 6}) {
		t.Errorf("error lines = %v, want [4 5 6]", lines)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outlines.csv")
	outlines := []Outline{{"introduce_character:brave", "add_obstacle_towards_major_goal"}}
	if err := SaveFile(path, outlines); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !equalOutlines(got, outlines) {
		t.Errorf("LoadFile() = %v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveFileKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outlines.csv")
	want := []Outline{{"introduce_character"}}
	if err := SaveFile(path, want); err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(path, []Outline{{"resolve_conflict"}, {"not valid"}}); err == nil {
		t.Fatal("expected error")
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !equalOutlines(got, want) {
		t.Errorf("LoadFile() = %v, want %v", got, want)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the outline file", len(entries))
	}
}
