package asp

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Clingo runs the clingo binary and streams its answers as they are printed.
type Clingo struct {
	Binary   string
	Programs []string
	// Models caps enumeration; 0 enumerates every model.
	Models int
	Args   []string
	Logger *log.Logger
}

// Solver exit codes: 10 satisfiable, 20 unsatisfiable, 30 satisfiable and
// search space exhausted.
const (
	exitSat       = 10
	exitUnsat     = 20
	exitExhausted = 30
)

const maxAnswerLine = 4 << 20

// waitDelay bounds how long Wait keeps copying stderr after the solver is
// killed, in case a child process still holds it open.
const waitDelay = 5 * time.Second

func (c *Clingo) args() []string {
	args := []string{"--outf=0", "-V1", "--models=" + strconv.Itoa(c.Models)}
	args = append(args, c.Args...)
	return append(args, c.Programs...)
}

func (c *Clingo) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func (c *Clingo) Solve(ctx context.Context) iter.Seq2[Model, error] {
	return func(yield func(Model, error) bool) {
		if len(c.Programs) == 0 {
			yield(Model{}, errors.New("clingo: no program files configured"))
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		binary := cmp.Or(c.Binary, "clingo")
		cmd := exec.CommandContext(ctx, binary, c.args()...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = waitDelay
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(Model{}, fmt.Errorf("clingo stdout: %w", err))
			return
		}

		c.logger().Debug("starting solver", "binary", binary, "programs", c.Programs, "models", c.Models)
		if err := cmd.Start(); err != nil {
			yield(Model{}, fmt.Errorf("start clingo: %w", err))
			return
		}

		status, stopped, scanErr := scanAnswers(stdout, yield)
		if stopped || scanErr != nil {
			// stdout is no longer read; kill the solver so Wait cannot block
			// on a full pipe.
			cancel()
			_ = cmd.Wait()
			if scanErr != nil {
				yield(Model{}, fmt.Errorf("read clingo output: %w", scanErr))
			}
			return
		}
		waitErr := cmd.Wait()
		if err := exitError(waitErr, stderr.String()); err != nil {
			yield(Model{}, err)
			return
		}

		c.logger().Debug("solver finished", "status", status)
		if status == "UNSATISFIABLE" {
			yield(Model{}, ErrUnsatisfiable)
		}
	}
}

func exitError(err error, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case exitSat, exitUnsat, exitExhausted:
			return nil
		}
	}
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		return fmt.Errorf("clingo: %w: %s", err, stderr)
	}
	return fmt.Errorf("clingo: %w", err)
}

// scanAnswers reads clingo's text output. Each "Answer: N" header is followed
// by one line holding the shown symbols. It returns the final status line and
// whether the consumer stopped the iteration.
func scanAnswers(r io.Reader, yield func(Model, error) bool) (status string, stopped bool, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxAnswerLine)

	pending := 0
	for sc.Scan() {
		line := sc.Text()
		if pending > 0 {
			n := pending
			pending = 0
			facts, err := ParseModel(line)
			var ok bool
			if err != nil {
				ok = yield(Model{Number: n}, &ModelError{Number: n, Err: err})
			} else {
				ok = yield(Model{Number: n, Facts: facts}, nil)
			}
			if !ok {
				return "", true, nil
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "Answer:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return "", false, fmt.Errorf("bad answer header %q", line)
			}
			pending = n
			continue
		}
		switch trimmed {
		case "SATISFIABLE", "UNSATISFIABLE", "UNKNOWN", "OPTIMUM FOUND":
			status = trimmed
		}
	}
	if pending > 0 {
		// header was the last line: the model shows no symbols
		if !yield(Model{Number: pending}, nil) {
			return status, true, nil
		}
	}
	return status, false, sc.Err()
}
