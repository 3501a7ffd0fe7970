// Package policy evaluates Rego protection policies against resources.
// A policy can protect resources that tags and age filters would let
// through, such as anything whose name looks like production.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/skyfell/reaper/types"
)

// Decision is the outcome of evaluating every loaded policy against a
// single resource.
type Decision struct {
	Protected bool   `json:"protected"`
	Reason    string `json:"reason,omitempty"`
	Policy    string `json:"policy,omitempty"`
}

// Input is the document handed to the Rego evaluator.
type Input struct {
	Resource  types.Resource `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
}

// Engine holds compiled policies keyed by file name.
type Engine struct {
	logger  zerolog.Logger
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an empty policy engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger:  logger,
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// Empty reports whether no policies are loaded.
func (e *Engine) Empty() bool {
	return len(e.queries) == 0
}

// LoadDir compiles every .rego file in dir. A missing directory is not
// an error; protection policies are optional.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read policy dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rego") {
			continue
		}
		code, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read policy %s: %w", entry.Name(), err)
		}
		if err := e.LoadPolicy(ctx, entry.Name(), string(code)); err != nil {
			return err
		}
	}
	return nil
}

// LoadPolicy compiles a single Rego module. Policies live under the
// reaper package and expose `protect` and optionally `reason`.
func (e *Engine) LoadPolicy(ctx context.Context, name, code string) error {
	query := rego.New(
		rego.Query("data.reaper"),
		rego.Module(name, code),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared
	e.logger.Debug().Str("policy", name).Msg("policy loaded")
	return nil
}

// Evaluate runs every policy against the resource. The first policy
// that protects it wins.
func (e *Engine) Evaluate(ctx context.Context, resource types.Resource) (Decision, error) {
	input := Input{Resource: resource, Timestamp: time.Now().UTC()}

	for name, prepared := range e.queries {
		results, err := prepared.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return Decision{}, fmt.Errorf("failed to evaluate policy %s: %w", name, err)
		}

		decision := parseResults(results)
		if decision.Protected {
			decision.Policy = name
			return decision, nil
		}
	}
	return Decision{}, nil
}

func parseResults(results rego.ResultSet) Decision {
	var decision Decision
	for _, result := range results {
		for _, expr := range result.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			if protect, ok := doc["protect"].(bool); ok && protect {
				decision.Protected = true
			}
			if reason, ok := doc["reason"].(string); ok {
				decision.Reason = reason
			}
		}
	}
	if decision.Protected && decision.Reason == "" {
		decision.Reason = "protected by policy"
	}
	return decision
}
