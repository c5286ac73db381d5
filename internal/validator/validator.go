// Package validator performs the static analysis of §4.1: reject,
// warn, classify, estimate — all syntactic, never executing the script.
//
// Go has no runtime `ast` module for the original scripting language, so
// per spec §9's Design Note (a) this service takes the documented DSL
// substitution: a script is a JSON array of {op, args} operations over a
// page handle. Decoding the JSON and walking the operation list plays
// the role of "parse the script and walk its abstract syntax" — the
// reject/warn/classify/estimate contract of §4.1 is unchanged, only the
// surface the rules run over (ops, not language AST nodes) differs.
package validator

import (
	"encoding/json"
	"fmt"
)

// Op kinds the restricted global scope of §4.5 exposes on the page
// object, plus the denylisted kinds that play the role of denied
// imports/dynamic-eval globals from the original §4.1 rule set.
const (
	OpGoto       = "goto"
	OpClick      = "click"
	OpType       = "type"
	OpWait       = "wait"
	OpSleep      = "sleep"
	OpScreenshot = "screenshot"
	OpPDF        = "pdf"
	OpEvalJS     = "eval_js"
	OpReturn     = "return"

	OpShell        = "shell"
	OpReadFile     = "read_file"
	OpWriteFile    = "write_file"
	OpImportModule = "import_module"
)

var deniedOps = map[string]bool{
	OpShell:        true,
	OpReadFile:     true,
	OpWriteFile:    true,
	OpImportModule: true,
}

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Op is one operation in the script's JSON array.
type Op struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

// Analysis is the result of both /validate (standalone) and the
// Submission-time pre-check before a job reaches the queue.
type Analysis struct {
	Valid                    bool       `json:"valid"`
	Errors                   []string   `json:"errors,omitempty"`
	Warnings                 []string   `json:"warnings,omitempty"`
	Complexity               Complexity `json:"complexity"`
	OperationCount           int        `json:"operation_count"`
	EstimatedDurationSeconds float64    `json:"estimated_duration_seconds"`
}

const (
	warnExcessiveOpCount  = 50
	warnLongSleepSeconds  = 5.0
	warnLongWaitSeconds   = 15.0
	complexityMediumBound = 10
	complexityHighBound   = 30
)

// Validate walks the decoded op list and applies §4.1's rules. It never
// returns an error for a malformed script — a parse failure is itself a
// rejection reason recorded in Analysis.Errors, matching "parse error"
// being one of the Reject conditions rather than a Go-level error.
func Validate(scriptText string, maxScriptSize int) *Analysis {
	a := &Analysis{Valid: true, Complexity: ComplexityLow}

	if len(scriptText) > maxScriptSize {
		a.Valid = false
		a.Errors = append(a.Errors, fmt.Sprintf("script exceeds max size of %d bytes", maxScriptSize))
	}

	var ops []Op
	if err := json.Unmarshal([]byte(scriptText), &ops); err != nil {
		a.Valid = false
		a.Errors = append(a.Errors, fmt.Sprintf("parse error: %v", err))
		return a
	}

	a.OperationCount = len(ops)

	sawReturn := false
	var estimate float64 = 0.5 // base cost

	for i, op := range ops {
		if deniedOps[op.Op] {
			a.Valid = false
			a.Errors = append(a.Errors, fmt.Sprintf("denied operation %q at index %d", op.Op, i))
			continue
		}
		if op.Op == OpReturn {
			sawReturn = true
		}
		if op.Op == OpEvalJS {
			a.Warnings = append(a.Warnings, fmt.Sprintf("eval_js at index %d runs arbitrary page-context JS", i))
		}

		estimate += estimateOp(op, a, i)
	}

	if !sawReturn {
		a.Valid = false
		a.Errors = append(a.Errors, "script has no return op (required entry point)")
	}

	if a.OperationCount > warnExcessiveOpCount {
		a.Warnings = append(a.Warnings, fmt.Sprintf("operation count %d is excessive", a.OperationCount))
	}

	a.Complexity = classify(a.OperationCount)
	a.EstimatedDurationSeconds = estimate

	return a
}

// ParseOps decodes a script's op list without re-running the full
// Validate pass. The Executor calls this at run time; Submission/
// /validate call Validate, which performs the same decode internally.
func ParseOps(scriptText string) ([]Op, error) {
	var ops []Op
	if err := json.Unmarshal([]byte(scriptText), &ops); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return ops, nil
}

func classify(opCount int) Complexity {
	switch {
	case opCount >= complexityHighBound:
		return ComplexityHigh
	case opCount >= complexityMediumBound:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

type sleepArgs struct {
	Seconds float64 `json:"seconds"`
}

type waitArgs struct {
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

type screenshotArgs struct {
	FullPage bool `json:"full_page"`
}

func estimateOp(op Op, a *Analysis, index int) float64 {
	switch op.Op {
	case OpGoto:
		return 1.0
	case OpScreenshot:
		var args screenshotArgs
		_ = json.Unmarshal(op.Args, &args)
		if args.FullPage {
			a.Warnings = append(a.Warnings, fmt.Sprintf("full-page screenshot at index %d is expensive", index))
			return 1.5
		}
		return 0.5
	case OpPDF:
		return 2.0
	case OpSleep:
		var args sleepArgs
		_ = json.Unmarshal(op.Args, &args)
		if args.Seconds > warnLongSleepSeconds {
			a.Warnings = append(a.Warnings, fmt.Sprintf("long sleep (%.1fs) at index %d", args.Seconds, index))
		}
		return args.Seconds
	case OpWait:
		var args waitArgs
		_ = json.Unmarshal(op.Args, &args)
		if args.TimeoutSeconds > warnLongWaitSeconds {
			a.Warnings = append(a.Warnings, fmt.Sprintf("long wait (%.1fs) at index %d", args.TimeoutSeconds, index))
		}
		return args.TimeoutSeconds
	default:
		return 0.2
	}
}
