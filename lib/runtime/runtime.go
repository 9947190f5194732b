// Package runtime ties the ember pipeline together for embedding hosts:
// the host-call dispatch table, the built-in function set, session
// management with per-session persistent contexts, and SQLite-backed
// persistence across restarts.
package runtime

import (
	"github.com/emberscript/ember/compiler"
	"github.com/emberscript/ember/pkg/bytecode"
)

// BlockReport is the outcome of one script block found in an input:
// the syntax errors collected while parsing it, and the execution result
// when it ran. A block that failed to compile has Executed false.
type BlockReport struct {
	ParseErrors []compiler.ParseError
	Executed    bool
	Result      bytecode.Result
}

// Engine is the embedding facade: feed it raw host output, it extracts
// the script blocks and runs them against a session.
type Engine struct {
	dispatcher *Dispatcher
	sessions   *SessionManager
}

// NewEngine creates an engine with the built-in functions registered.
// A nil store disables persistence.
func NewEngine(limits bytecode.Limits, store *ContextStore) *Engine {
	d := NewDispatcher()
	RegisterBuiltins(d)
	return &Engine{
		dispatcher: d,
		sessions:   NewSessionManager(limits, d, store),
	}
}

// Dispatcher returns the host-call registry, for the host to add its own
// functions and objects before any script runs.
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Sessions returns the engine's session manager.
func (e *Engine) Sessions() *SessionManager {
	return e.sessions
}

// RunText extracts every script block from the input and runs each, left
// to right, against the named session. Syntax errors in a block are
// reported but do not stop the recovered remainder of that block from
// executing, and never stop later blocks.
func (e *Engine) RunText(sessionID, input string) []BlockReport {
	session := e.sessions.Session(sessionID)

	var reports []BlockReport
	lexer := compiler.NewLexer(input)
	for {
		tokens, ok := lexer.NextBlock()
		if !ok {
			break
		}

		prog, parseErrs := compiler.Parse(tokens)
		for _, perr := range parseErrs {
			log.Infof("session %s: parse: %v", sessionID, perr)
		}
		report := BlockReport{ParseErrors: parseErrs}

		chunk, err := bytecode.Compile(prog)
		if err != nil {
			log.Errorf("session %s: compile: %v", sessionID, err)
			report.Result = bytecode.Result{Error: err.Error()}
			reports = append(reports, report)
			continue
		}

		report.Executed = true
		report.Result = session.Execute(chunk)
		reports = append(reports, report)
	}
	return reports
}

// Strip removes every script block from the input, leaving the
// surrounding text.
func Strip(input string) string {
	return compiler.StripBlocks(input)
}
