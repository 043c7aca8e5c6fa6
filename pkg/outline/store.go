package outline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FieldDelimiter separates labels on an interchange line. ValidTag never
// accepts it, so round trips need no escaping.
const FieldDelimiter = ","

// MaxLine is the longest interchange line Decode accepts.
const MaxLine = 4 << 20

// LineError reports a malformed interchange line, counted from 1.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// String renders the outline as one interchange line, without newline.
func (o Outline) String() string {
	return strings.Join(o.Strings(), FieldDelimiter)
}

// Encode writes one outline per line. Every label is checked before anything
// is written; an empty outline is written as a blank line.
func Encode(w io.Writer, outlines []Outline) error {
	for i, o := range outlines {
		for _, l := range o {
			if !l.Valid() {
				return fmt.Errorf("outline %d: invalid label %q", i, l)
			}
		}
	}
	bw := bufio.NewWriter(w)
	for _, o := range outlines {
		if _, err := bw.WriteString(o.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads outlines written by Encode. Lines starting with '#' are
// comments. The older bracketed form ['a', 'b:c'] is also accepted. Bad lines
// are reported as *LineError and the rest of the input is still read.
func Decode(r io.Reader) ([]Outline, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLine)
	var (
		outlines []Outline
		errs     []error
	)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		o, err := decodeLine(line)
		if err != nil {
			errs = append(errs, &LineError{Line: n, Err: err})
			continue
		}
		outlines = append(outlines, o)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, err)
	}
	return outlines, errors.Join(errs...)
}

func decodeLine(line string) (Outline, error) {
	legacy := false
	if strings.HasPrefix(line, "[") {
		inner, ok := strings.CutSuffix(line[1:], "]")
		if !ok {
			return nil, errors.New("unterminated '['")
		}
		line = strings.TrimSpace(inner)
		legacy = true
	}
	if line == "" {
		return Outline{}, nil
	}

	fields := strings.Split(line, FieldDelimiter)
	o := make(Outline, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if legacy {
			f = unquote(f)
		}
		l := Label(f)
		if !l.Valid() {
			return nil, fmt.Errorf("invalid label %q", f)
		}
		o = append(o, l)
	}
	return o, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// SaveFile writes outlines to path through a temporary file in the same
// directory, so a failed save leaves any previous file untouched.
func SaveFile(path string, outlines []Outline) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := Encode(f, outlines); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func LoadFile(path string) ([]Outline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	outlines, err := Decode(f)
	if err != nil {
		return outlines, fmt.Errorf("decode %s: %w", path, err)
	}
	return outlines, nil
}
