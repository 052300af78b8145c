// Package engine provides the Lisp evaluation engine for sdfview.
// It wraps zygomys in a sandboxed environment and produces a surface tree
// from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/sdfview/pkg/shape"
	"github.com/chazu/sdfview/pkg/surface"
	zygo "github.com/glycerine/zygomys/zygo"
)

// maxDrainPolls bounds the post-build drain of construction-time changes.
const maxDrainPolls = 1 << 16

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter for scene evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate takes Lisp source code and produces a surface tree.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns root + nil errors + nil error
//   - On parse/eval failure: returns nil root + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
//
// The root is a union named "scene". If the script calls (scene ...), its
// arguments become the children; otherwise every top-level shape that was
// not consumed by another shape is collected in definition order. The
// returned tree reports no pending changes.
func (e *Engine) Evaluate(source string) (surface.Surface, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		root, evalErrs, err := e.evaluate(source)
		ch <- evalResult{root: root, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (surface.Surface, []EvalError, error) {
	b := newBuilder()

	// Empty source is a valid program that produces an empty scene.
	if strings.TrimSpace(source) == "" {
		return b.root(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	root := b.root()
	if err := drain(root); err != nil {
		return nil, nil, err
	}
	return root, nil, nil
}

// drain clears the changes recorded while builtins applied options such as
// :color, so a fresh tree starts clean.
func drain(root surface.Surface) error {
	for i := 0; i < maxDrainPolls; i++ {
		if _, ok := surface.Changed(root); !ok {
			return nil
		}
	}
	return fmt.Errorf("engine: scene still reports changes after %d polls", maxDrainPolls)
}

// builder collects the surfaces created during one evaluation.
type builder struct {
	created  []surface.Surface
	consumed map[surface.Surface]bool
	scene    *shape.Union
	nextID   uint32
	ids      map[uint32]string
}

func newBuilder() *builder {
	return &builder{
		consumed: make(map[surface.Surface]bool),
		ids:      make(map[uint32]string),
	}
}

// root returns the explicit scene, or a union of all unconsumed shapes.
func (b *builder) root() surface.Surface {
	if b.scene != nil {
		return b.scene
	}
	var top []surface.Surface
	for _, s := range b.created {
		if !b.consumed[s] {
			top = append(top, s)
		}
	}
	return shape.NewUnion(0, "scene", top...)
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
