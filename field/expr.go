package field

/* expr.go is the lazy elementwise algebra. An Expr describes a per-cell
formula; no work happens until a Field.Assign call evaluates it over the
interior. All fields in one expression must share the assignment target's
layout. */

import (
	"github.com/phil-mansfield/picell/errs"
)

// Expr is a deferred per-cell formula.
type Expr[T Scalar] interface {
	eval(off int) T
	check(target *Field[T]) error
}

// Ref wraps a field for use in an expression.
func Ref[T Scalar](f *Field[T]) Expr[T] { return ref[T]{f} }

type ref[T Scalar] struct{ f *Field[T] }

func (r ref[T]) eval(off int) T { return r.f.data[off] }

func (r ref[T]) check(target *Field[T]) error {
	if !target.sameShape(r.f) {
		return errs.New("field", "Assign", errs.LayoutMismatch,
			"expression operand is on a different layout than the target")
	}
	return nil
}

// Con is a constant-valued expression.
func Con[T Scalar](v T) Expr[T] { return con[T]{v} }

type con[T Scalar] struct{ v T }

func (c con[T]) eval(off int) T             { return c.v }
func (c con[T]) check(target *Field[T]) error { return nil }

// Shifted reads f displaced by delta cells along an axis. Reads past the
// interior land in ghost cells, so stencil expressions require a preceding
// FillHalo.
func Shifted[T Scalar](f *Field[T], axis, delta int) Expr[T] {
	return shifted[T]{f, delta * f.strides[axis]}
}

type shifted[T Scalar] struct {
	f    *Field[T]
	doff int
}

func (s shifted[T]) eval(off int) T { return s.f.data[off+s.doff] }

func (s shifted[T]) check(target *Field[T]) error {
	return ref[T]{s.f}.check(target)
}

type binop[T Scalar] struct {
	a, b Expr[T]
	op   func(a, b T) T
}

func (e binop[T]) eval(off int) T { return e.op(e.a.eval(off), e.b.eval(off)) }

func (e binop[T]) check(target *Field[T]) error {
	if err := e.a.check(target); err != nil {
		return err
	}
	return e.b.check(target)
}

// Add is the elementwise sum a + b.
func Add[T Scalar](a, b Expr[T]) Expr[T] {
	return binop[T]{a, b, func(x, y T) T { return x + y }}
}

// Sub is the elementwise difference a - b.
func Sub[T Scalar](a, b Expr[T]) Expr[T] {
	return binop[T]{a, b, func(x, y T) T { return x - y }}
}

// Mul is the elementwise product a * b.
func Mul[T Scalar](a, b Expr[T]) Expr[T] {
	return binop[T]{a, b, func(x, y T) T { return x * y }}
}

// Scale multiplies an expression by a scalar.
func Scale[T Scalar](s T, e Expr[T]) Expr[T] {
	return binop[T]{con[T]{s}, e, func(x, y T) T { return x * y }}
}
