// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"context"
	"sync"

	"github.com/sony/gobreaker"
)

// Condition gates upload attempts. When it is not ready the cycle is
// skipped and the batch stays where it is.
type Condition interface {
	Ready(context.Context) bool
}

// ConditionFunc
type ConditionFunc func(context.Context) bool

// Ready implements the [Condition] interface.
func (f ConditionFunc) Ready(ctx context.Context) bool {
	return f(ctx)
}

// Always is a Condition which is always ready.
var Always Condition = ConditionFunc(func(context.Context) bool { return true })

// Never is a Condition which is never ready.
var Never Condition = ConditionFunc(func(context.Context) bool { return false })

// Binary is a Condition which is either ready or not.
// The zero value is ready.
type Binary struct {
	mu      sync.Mutex
	blocked bool
}

// Toggle flips the state of Binary.
func (c *Binary) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = !c.blocked
}

// Set makes Binary ready or not.
func (c *Binary) Set(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = !ready
}

// Ready implements the [Condition] interface.
func (c *Binary) Ready(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.blocked
}

// AndCondition is ready when all of its Conditions are.
type AndCondition struct {
	conds []Condition
}

// And joins conds with the logical and (&&) operator.
func And(conds ...Condition) AndCondition {
	return AndCondition{conds: conds}
}

// Ready implements the [Condition] interface.
func (c AndCondition) Ready(ctx context.Context) bool {
	for _, cond := range c.conds {
		if !cond.Ready(ctx) {
			return false
		}
	}
	return true
}

// OrCondition is ready when any of its Conditions is.
type OrCondition struct {
	conds []Condition
}

// Or joins conds with the logical or (||) operator.
func Or(conds ...Condition) OrCondition {
	return OrCondition{conds: conds}
}

// Ready implements the [Condition] interface.
func (c OrCondition) Ready(ctx context.Context) bool {
	for _, cond := range c.conds {
		if cond.Ready(ctx) {
			return true
		}
	}
	return false
}

// NotCondition negates a Condition.
type NotCondition struct {
	cond Condition
}

// Not negates cond with the logical not (!) operator.
func Not(cond Condition) NotCondition {
	return NotCondition{cond: cond}
}

// Ready implements the [Condition] interface.
func (c NotCondition) Ready(ctx context.Context) bool {
	return !c.cond.Ready(ctx)
}

// CircuitClosed is ready unless the circuit breaker of c is open, which
// happens after repeated transport failures. A half open circuit is
// ready so a probe request can close it again.
func CircuitClosed(c *Client) Condition {
	return ConditionFunc(func(context.Context) bool {
		if c.breaker == nil {
			return true
		}
		return c.breaker.State() != gobreaker.StateOpen
	})
}
