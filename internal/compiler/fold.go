package compiler

import (
	"math"

	"lumen/internal/ast"
)

// foldBinary attempts to evaluate op on two compile-time constants using
// the same overflow and divide-by-zero policy the VM applies at runtime
// (spec's constant-folding law: compile-time result must equal what the
// VM would have computed). When folding would trap — overflow, or a zero
// divisor — it reports ok=false so the caller falls back to emitting the
// operation for the VM to evaluate (and raise) at runtime, rather than
// failing compilation over a value that is only unreachable if the
// program never executes that branch.
func foldBinary(op ast.InfixOp, a, b cvalue) (cvalue, bool) {
	if !a.isConst() || !b.isConst() {
		return cvalue{}, false
	}
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpDivFloor, ast.OpRem, ast.OpPow:
		return foldArith(op, a, b)
	case ast.OpShl, ast.OpShr, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		return foldBitwise(op, a, b)
	case ast.OpEq, ast.OpNotEq, ast.OpLt, ast.OpLtEq, ast.OpGt, ast.OpGtEq:
		return foldCompare(op, a, b)
	default:
		return cvalue{}, false
	}
}

func (v cvalue) isConst() bool {
	switch v.kind {
	case cvNull, cvBool, cvInt, cvNum, cvStr:
		return true
	default:
		return false
	}
}

func asFloat(v cvalue) (float64, bool) {
	switch v.kind {
	case cvInt:
		return float64(v.i), true
	case cvNum:
		return v.n, true
	default:
		return 0, false
	}
}

func foldArith(op ast.InfixOp, a, b cvalue) (cvalue, bool) {
	if a.kind == cvStr && b.kind == cvStr && op == ast.OpAdd {
		return cvalue{kind: cvStr, s: a.s + b.s}, true
	}
	bothInt := a.kind == cvInt && b.kind == cvInt
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return cvalue{}, false
	}
	if bothInt {
		x, y := a.i, b.i
		switch op {
		case ast.OpAdd:
			if r, ok := checkedAdd(x, y); ok {
				return cvalue{kind: cvInt, i: r}, true
			}
			return cvalue{}, false
		case ast.OpSub:
			if r, ok := checkedSub(x, y); ok {
				return cvalue{kind: cvInt, i: r}, true
			}
			return cvalue{}, false
		case ast.OpMul:
			if r, ok := checkedMul(x, y); ok {
				return cvalue{kind: cvInt, i: r}, true
			}
			return cvalue{}, false
		case ast.OpDivFloor:
			if y == 0 {
				return cvalue{}, false
			}
			return cvalue{kind: cvInt, i: floorDiv(x, y)}, true
		case ast.OpRem:
			if y == 0 {
				return cvalue{}, false
			}
			return cvalue{kind: cvInt, i: x % y}, true
		case ast.OpDiv:
			if y == 0 {
				return cvalue{}, false
			}
			return cvalue{kind: cvNum, n: float64(x) / float64(y)}, true
		case ast.OpPow:
			if y < 0 {
				return cvalue{kind: cvNum, n: math.Pow(float64(x), float64(y))}, true
			}
			if r, ok := checkedIntPow(x, y); ok {
				return cvalue{kind: cvInt, i: r}, true
			}
			return cvalue{}, false
		}
	}
	switch op {
	case ast.OpAdd:
		return cvalue{kind: cvNum, n: af + bf}, true
	case ast.OpSub:
		return cvalue{kind: cvNum, n: af - bf}, true
	case ast.OpMul:
		return cvalue{kind: cvNum, n: af * bf}, true
	case ast.OpDiv:
		if bf == 0 {
			return cvalue{}, false
		}
		return cvalue{kind: cvNum, n: af / bf}, true
	case ast.OpDivFloor:
		// div_floor is integer-only (spec.md:139); abandon folding so the
		// operation reaches the VM, which raises the same "div_floor
		// requires integer operands" fault it would for a runtime-computed
		// pair.
		return cvalue{}, false
	case ast.OpRem:
		if bf == 0 {
			return cvalue{}, false
		}
		return cvalue{kind: cvNum, n: math.Mod(af, bf)}, true
	case ast.OpPow:
		return cvalue{kind: cvNum, n: math.Pow(af, bf)}, true
	}
	return cvalue{}, false
}

func foldBitwise(op ast.InfixOp, a, b cvalue) (cvalue, bool) {
	if a.kind != cvInt || b.kind != cvInt {
		return cvalue{}, false
	}
	x, y := a.i, b.i
	switch op {
	case ast.OpShl:
		return cvalue{kind: cvInt, i: x << uint(y)}, true
	case ast.OpShr:
		return cvalue{kind: cvInt, i: x >> uint(y)}, true
	case ast.OpBitAnd:
		return cvalue{kind: cvInt, i: x & y}, true
	case ast.OpBitOr:
		return cvalue{kind: cvInt, i: x | y}, true
	case ast.OpBitXor:
		return cvalue{kind: cvInt, i: x ^ y}, true
	}
	return cvalue{}, false
}

func foldCompare(op ast.InfixOp, a, b cvalue) (cvalue, bool) {
	var cmp int
	switch {
	case a.kind == cvStr && b.kind == cvStr:
		cmp = compareStrings(a.s, b.s)
	case a.kind == cvBool && b.kind == cvBool:
		if op != ast.OpEq && op != ast.OpNotEq {
			return cvalue{}, false
		}
		cmp = 0
		if a.b != b.b {
			cmp = 1
		}
	case a.kind == cvNull || b.kind == cvNull:
		if op != ast.OpEq && op != ast.OpNotEq {
			return cvalue{}, false
		}
		cmp = 0
		if a.kind != b.kind {
			cmp = 1
		}
	default:
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return cvalue{}, false
		}
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		default:
			cmp = 0
		}
	}
	switch op {
	case ast.OpEq:
		return cvalue{kind: cvBool, b: cmp == 0}, true
	case ast.OpNotEq:
		return cvalue{kind: cvBool, b: cmp != 0}, true
	case ast.OpLt:
		return cvalue{kind: cvBool, b: cmp < 0}, true
	case ast.OpLtEq:
		return cvalue{kind: cvBool, b: cmp <= 0}, true
	case ast.OpGt:
		return cvalue{kind: cvBool, b: cmp > 0}, true
	case ast.OpGtEq:
		return cvalue{kind: cvBool, b: cmp >= 0}, true
	}
	return cvalue{}, false
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func foldUnary(op ast.PrefixOp, v cvalue) (cvalue, bool) {
	if !v.isConst() {
		return cvalue{}, false
	}
	switch op {
	case ast.PrefixNeg:
		switch v.kind {
		case cvInt:
			if v.i == math.MinInt64 {
				return cvalue{}, false
			}
			return cvalue{kind: cvInt, i: -v.i}, true
		case cvNum:
			return cvalue{kind: cvNum, n: -v.n}, true
		}
	case ast.PrefixNot:
		if v.kind == cvBool {
			return cvalue{kind: cvBool, b: !v.b}, true
		}
	case ast.PrefixBitNot:
		if v.kind == cvInt {
			return cvalue{kind: cvInt, i: ^v.i}, true
		}
	}
	return cvalue{}, false
}

func checkedAdd(a, b int64) (int64, bool) {
	c := a + b
	if ((a ^ c) & (b ^ c)) < 0 {
		return 0, false
	}
	return c, true
}

func checkedSub(a, b int64) (int64, bool) {
	c := a - b
	if ((a ^ b) & (a ^ c)) < 0 {
		return 0, false
	}
	return c, true
}

func checkedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

// floorDiv implements Go's truncating `/` corrected to floor toward
// negative infinity when the operands' signs differ and there's a
// remainder, matching the VM's div_floor semantics.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func checkedIntPow(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r, ok := checkedMul(result, base)
			if !ok {
				return 0, false
			}
			result = r
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		b, ok := checkedMul(base, base)
		if !ok {
			return 0, false
		}
		base = b
	}
	return result, true
}
