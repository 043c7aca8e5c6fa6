// Package archive stores finished story pairs on disk, either as plain text
// batch directories or in a SQLite database.
package archive

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"plotweave/pkg/batch"
	"plotweave/pkg/schema"
	"plotweave/pkg/utils"
)

const stampLayout = "200601021504"

// Dir writes one directory per batch:
//
//	<Root>/<yyyymmddHHMM>_<premise>/guided/<i>.txt
//	<Root>/<yyyymmddHHMM>_<premise>/unguided/<i>.txt
//
// Each file holds one paragraph per line. Only usable pairs are written, so
// both sides of a batch always hold the same stories.
type Dir struct {
	Root string
	Now  func() time.Time
}

func (d Dir) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Save writes the usable pairs of one premise and returns the batch directory.
func (d Dir) Save(premise string, pairs []batch.Pair) (string, error) {
	dir := filepath.Join(d.Root, d.now().Format(stampLayout)+"_"+utils.SanitizeFilename(premise))
	for _, mode := range []schema.Mode{schema.Guided, schema.Unguided} {
		if err := os.MkdirAll(filepath.Join(dir, string(mode)), 0o755); err != nil {
			return "", err
		}
	}
	for _, p := range pairs {
		if !p.Usable() {
			continue
		}
		name := strconv.Itoa(p.Job.Index) + ".txt"
		if err := writeLines(filepath.Join(dir, string(schema.Guided), name), p.Guided.Paragraphs); err != nil {
			return "", err
		}
		if err := writeLines(filepath.Join(dir, string(schema.Unguided), name), p.Unguided.Paragraphs); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func writeLines(path string, paragraphs []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, p := range paragraphs {
		// a paragraph is one line
		w.WriteString(strings.ReplaceAll(p, "\n", " "))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Batch is one archived batch read back for evaluation. Guided[i] and
// Unguided[i] come from the same job.
type Batch struct {
	Dir      string
	Premise  string
	Guided   [][]string
	Unguided [][]string
}

// Group is the subset of a batch whose stories have the same scene count.
type Group struct {
	Scenes   int
	Guided   [][]string
	Unguided [][]string
}

// Groups splits the batch by scene count, shortest first. Pairs whose sides
// disagree on length are dropped.
func (b Batch) Groups() []Group {
	byLen := map[int]*Group{}
	for i := range b.Guided {
		g, u := b.Guided[i], b.Unguided[i]
		if len(g) != len(u) || len(g) == 0 {
			continue
		}
		grp, ok := byLen[len(g)]
		if !ok {
			grp = &Group{Scenes: len(g)}
			byLen[len(g)] = grp
		}
		grp.Guided = append(grp.Guided, g)
		grp.Unguided = append(grp.Unguided, u)
	}
	out := make([]Group, 0, len(byLen))
	for _, g := range byLen {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b Group) int { return cmp.Compare(a.Scenes, b.Scenes) })
	return out
}

// LoadBatch reads a directory written by Save. The premise is the part of
// the directory name after the first underscore.
func LoadBatch(dir string) (Batch, error) {
	base := filepath.Base(dir)
	_, premise, ok := strings.Cut(base, "_")
	if !ok {
		return Batch{}, fmt.Errorf("batch directory %q has no premise", base)
	}
	b := Batch{Dir: dir, Premise: premise}

	names, err := storyNames(filepath.Join(dir, string(schema.Guided)))
	if err != nil {
		return Batch{}, err
	}
	for _, name := range names {
		g, err := readLines(filepath.Join(dir, string(schema.Guided), name))
		if err != nil {
			return Batch{}, err
		}
		u, err := readLines(filepath.Join(dir, string(schema.Unguided), name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Batch{}, err
		}
		b.Guided = append(b.Guided, g)
		b.Unguided = append(b.Unguided, u)
	}
	return b, nil
}

// LoadBatches reads every batch directory directly under root.
func LoadBatches(root string) ([]Batch, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Batch
	for _, e := range entries {
		if !e.IsDir() || !utils.Exists(filepath.Join(root, e.Name(), string(schema.Guided))) {
			continue
		}
		b, err := LoadBatch(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// storyNames lists <i>.txt files in numeric order.
func storyNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type story struct {
		n    int
		name string
	}
	var stories []story
	for _, e := range entries {
		stem, ok := strings.CutSuffix(e.Name(), ".txt")
		if !ok || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		stories = append(stories, story{n, e.Name()})
	}
	slices.SortFunc(stories, func(a, b story) int { return cmp.Compare(a.n, b.n) })
	names := make([]string, len(stories))
	for i, s := range stories {
		names[i] = s.name
	}
	return names, nil
}

// maxSceneLine bounds one archived scene, which is stored on a single line.
const maxSceneLine = 16 << 20

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxSceneLine)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
