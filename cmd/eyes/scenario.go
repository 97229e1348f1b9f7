package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/eye"
)

// Scenario is a scripted set of mutations applied to one container: a
// sequence (seq) or a record (record).
type Scenario struct {
	Name   string         `yaml:"name"`
	Seq    []any          `yaml:"seq"`
	Record map[string]any `yaml:"record"`
	Ops    []Op           `yaml:"ops"`
}

// Op is one mutation. Sequences take splice, push, pop, shift, unshift,
// set and setLen; records take set and delete.
type Op struct {
	Op     string `yaml:"op"`
	Start  int    `yaml:"start"`
	Delete int    `yaml:"delete"`
	Items  []any  `yaml:"items"`
	Index  int    `yaml:"index"`
	Key    string `yaml:"key"`
	Value  any    `yaml:"value"`
	Len    int    `yaml:"len"`
}

var (
	seqOps    = map[string]bool{"splice": true, "push": true, "pop": true, "shift": true, "unshift": true, "set": true, "setLen": true}
	recordOps = map[string]bool{"set": true, "delete": true}
)

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeScenarioInvalid).Wrap(err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.New(errors.CodeScenarioInvalid).
			WithDetailf("%s: %v", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = "scenario"
	}
	return &sc, nil
}

func (sc *Scenario) isSeq() bool { return sc.Record == nil }

func (sc *Scenario) validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.CodeScenarioInvalid).
			WithDetailf(format, args...).
			WithSuggestion("declare exactly one of seq or record, and only ops that fit it")
	}
	if (sc.Seq == nil) == (sc.Record == nil) {
		return invalid("scenario %q must declare exactly one of seq or record", sc.Name)
	}
	allowed := recordOps
	if sc.isSeq() {
		allowed = seqOps
	}
	for i, op := range sc.Ops {
		if !allowed[op.Op] {
			return invalid("op %d: %q does not apply here", i, op.Op)
		}
		if op.Index < 0 || op.Len < 0 || op.Delete < 0 {
			return invalid("op %d: negative index, len or delete", i)
		}
		if !sc.isSeq() && op.Key == "" {
			return invalid("op %d: record ops need a key", i)
		}
	}
	return nil
}

func (sc *Scenario) applySeq(q *eye.Seq) {
	for _, op := range sc.Ops {
		items := normalizeAll(op.Items)
		switch op.Op {
		case "splice":
			q.Splice(op.Start, op.Delete, items...)
		case "push":
			q.Push(items...)
		case "pop":
			q.Pop()
		case "shift":
			q.Shift()
		case "unshift":
			q.Unshift(items...)
		case "set":
			q.Set(op.Index, eye.Normalize(op.Value))
		case "setLen":
			q.SetLen(op.Len)
		}
	}
}

func (sc *Scenario) applyRecord(r *eye.Record) {
	for _, op := range sc.Ops {
		switch op.Op {
		case "set":
			r.Set(op.Key, eye.Normalize(op.Value))
		case "delete":
			r.Delete(op.Key)
		}
	}
}

func normalizeAll(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = eye.Normalize(v)
	}
	return out
}
