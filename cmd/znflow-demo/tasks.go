package main

import (
	"fmt"

	"github.com/ordinate-sh/znflow"
)

// AddOne is a Class Task: Value is read once Run executes, whether it
// was wired from another task's output or set to a literal before the
// scope was opened.
type AddOne struct {
	znflow.TaskBase

	Value  any
	Result int
}

func (t *AddOne) Run() error {
	v, ok := asInt(t.Value)
	if !ok {
		return fmt.Errorf("AddOne: Value is not an int: %v", t.Value)
	}
	t.Result = v + 1
	return nil
}

// Double doubles its input.
type Double struct {
	znflow.TaskBase

	Value  any
	Result int
}

func (t *Double) Run() error {
	v, ok := asInt(t.Value)
	if !ok {
		return fmt.Errorf("Double: Value is not an int: %v", t.Value)
	}
	t.Result = v * 2
	return nil
}

// Sum adds two wired inputs together — the "diamond" join point.
type Sum struct {
	znflow.TaskBase

	Left, Right any
	Result      int
}

func (t *Sum) Run() error {
	l, ok := asInt(t.Left)
	if !ok {
		return fmt.Errorf("Sum: Left is not an int: %v", t.Left)
	}
	r, ok := asInt(t.Right)
	if !ok {
		return fmt.Errorf("Sum: Right is not an int: %v", t.Right)
	}
	t.Result = l + r
	return nil
}

// Source is an external, read-only task: a value known before the scope
// opened, never executed by a deployment, only read from.
type Source struct {
	znflow.TaskBase

	Values []int
}

// ListProducer yields a fixed slice, for exercising Combine.
type ListProducer struct {
	znflow.TaskBase

	Seed   int
	Result []int
}

func (t *ListProducer) Run() error {
	t.Result = []int{t.Seed, t.Seed + 1, t.Seed + 2}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}
