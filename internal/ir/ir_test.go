package ir

import (
	"bytes"
	"testing"
)

func TestHasResultExcludesControlFlow(t *testing.T) {
	for _, op := range []Op{OpJump, OpJumpIfFalse, OpJumpIfTrue, OpRet, OpStoreGlobal, OpSetIndex} {
		if HasResult(op) {
			t.Errorf("HasResult(%s) = true, want false", op)
		}
	}
	for _, op := range []Op{OpAdd, OpLoadInt, OpCall, OpBuildList, OpGet} {
		if !HasResult(op) {
			t.Errorf("HasResult(%s) = false, want true", op)
		}
	}
}

func TestNeedsDebugInfoCoversRaisingOps(t *testing.T) {
	for _, op := range []Op{OpAdd, OpDiv, OpGet, OpCall, OpAssertLen} {
		if !NeedsDebugInfo(op) {
			t.Errorf("NeedsDebugInfo(%s) = false, want true", op)
		}
	}
	for _, op := range []Op{OpLoadInt, OpMov, OpJump} {
		if NeedsDebugInfo(op) {
			t.Errorf("NeedsDebugInfo(%s) = true, want false", op)
		}
	}
}

func TestInstructionEncodeDecodeRoundTrip(t *testing.T) {
	bin := NewBin(OpAdd, Ref(3), Ref(7))
	lhs, rhs := bin.AsBin()
	if lhs != 3 || rhs != 7 {
		t.Fatalf("AsBin() = (%d,%d), want (3,7)", lhs, rhs)
	}

	li := NewLoadInt(-42)
	if li.AsInt() != -42 {
		t.Fatalf("AsInt() = %d, want -42", li.AsInt())
	}

	ln := NewLoadNum(3.5)
	if ln.AsNum() != 3.5 {
		t.Fatalf("AsNum() = %v, want 3.5", ln.AsNum())
	}

	jc := NewJumpCond(OpJumpIfFalse, Ref(1), -5)
	cond, off := jc.AsJumpCond()
	if cond != 1 || off != -5 {
		t.Fatalf("AsJumpCond() = (%d,%d), want (1,-5)", cond, off)
	}
}

func buildSampleModule() *Bytecode {
	b := &Bytecode{Debug: DebugInfo{SourcePath: "sample.lm", Source: "1 + 2", Lines: map[int]int{}}}

	off, length := b.InternString("hello")
	i0 := b.Code.Emit(NewLoadStr(off, length))
	i1 := b.Code.Emit(NewLoadInt(7))
	i2 := b.Code.Emit(NewBin(OpAdd, Ref(i0), Ref(i1)))
	b.Debug.Lines[i2] = 4
	i3 := b.Code.Emit(Instruction{Op: OpRet, Data: uint64(i2)})

	extraOff := b.PushExtra(Ref(0), Ref(1))
	_ = extraOff

	b.Functions = []Function{{Name: "main", Params: 0, NumLocals: 4, Body: []int{i0, i1, i2, i3}}}
	b.MainIndex = 0
	b.BuildID = "test-build-id"
	return b
}

func TestWriteReadRoundTrip(t *testing.T) {
	original := buildSampleModule()

	var buf bytes.Buffer
	if err := Write(&buf, original); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(u64ToBytes(original.Code.Data), u64ToBytes(got.Code.Data)) {
		t.Fatalf("Code.Data mismatch")
	}
	if len(original.Code.Op) != len(got.Code.Op) {
		t.Fatalf("Code.Op length mismatch")
	}
	for i := range original.Code.Op {
		if original.Code.Op[i] != got.Code.Op[i] {
			t.Fatalf("Code.Op[%d] = %v, want %v", i, got.Code.Op[i], original.Code.Op[i])
		}
	}
	if !bytes.Equal(original.Strings, got.Strings) {
		t.Fatalf("Strings mismatch: %q vs %q", got.Strings, original.Strings)
	}
	if got.MainIndex != original.MainIndex {
		t.Fatalf("MainIndex = %d, want %d", got.MainIndex, original.MainIndex)
	}
	if got.BuildID != original.BuildID {
		t.Fatalf("BuildID = %q, want %q", got.BuildID, original.BuildID)
	}
	if got.Debug.SourcePath != original.Debug.SourcePath {
		t.Fatalf("Debug.SourcePath = %q, want %q", got.Debug.SourcePath, original.Debug.SourcePath)
	}
	for idx, off := range original.Debug.Lines {
		if got.Debug.Lines[idx] != off {
			t.Fatalf("Debug.Lines[%d] = %d, want %d", idx, got.Debug.Lines[idx], off)
		}
	}
}

func u64ToBytes(vals []uint64) []byte {
	out := make([]byte, len(vals)*8)
	for i, v := range vals {
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(v >> (8 * j))
		}
	}
	return out
}
