package bytecode

import (
	"encoding/binary"
	"math"
)

func floatBits(f float64) uint64 { return math.Float64bits(f) }

// Module is a compiled Bog program ready for interpretation: a flat
// instruction stream plus a string pool referenced by ConstString/import/
// native opcodes. Satisfies value.ModuleRef.
type Module struct {
	Name    string
	Code    []byte
	Strings []byte
	Entry   uint32
}

func (m *Module) ModuleName() string { return m.Name }

// String returns the string-pool entry at offset off: a u32 byte length
// followed by the UTF-8 bytes, matching what Builder.String appends.
func (m *Module) String(off uint32) string {
	n := binary.LittleEndian.Uint32(m.Strings[off : off+4])
	return string(m.Strings[off+4 : off+4+n])
}

// Builder assembles a Module's code and string pool. The compiler emits
// into one Builder per module being compiled; BuildFn's entry_offset
// operands are patched via PatchAddr once the target block's address is
// known.
type Builder struct {
	code    []byte
	strings []byte
	strOff  map[string]uint32 // interns identical string literals
}

func NewBuilder() *Builder {
	return &Builder{strOff: make(map[string]uint32)}
}

// Len returns the current code length, usable as a jump target address.
func (b *Builder) Len() int { return len(b.code) }

func (b *Builder) emitByte(v byte)  { b.code = append(b.code, v) }
func (b *Builder) emitU16(v uint16) { b.code = binary.LittleEndian.AppendUint16(b.code, v) }
func (b *Builder) emitU32(v uint32) { b.code = binary.LittleEndian.AppendUint32(b.code, v) }
func (b *Builder) emitI32(v int32)  { b.emitU32(uint32(v)) }
func (b *Builder) emitI64(v int64)  { b.code = binary.LittleEndian.AppendUint64(b.code, uint64(v)) }
func (b *Builder) emitF64(v float64) {
	b.code = binary.LittleEndian.AppendUint64(b.code, floatBits(v))
}

// String interns s into the string pool and returns its strref offset.
func (b *Builder) String(s string) uint32 {
	if off, ok := b.strOff[s]; ok {
		return off
	}
	off := uint32(len(b.strings))
	b.strings = binary.LittleEndian.AppendUint32(b.strings, uint32(len(s)))
	b.strings = append(b.strings, s...)
	b.strOff[s] = off
	return off
}

// --- instruction emitters, one per opcode shape in spec.md §4.5 ---------

func (b *Builder) ConstInt8(a byte, v int8) {
	b.emitByte(byte(OpConstInt8))
	b.emitByte(a)
	b.emitByte(byte(v))
}

func (b *Builder) ConstInt32(a byte, v int32) {
	b.emitByte(byte(OpConstInt32))
	b.emitByte(a)
	b.emitI32(v)
}

func (b *Builder) ConstInt64(a byte, v int64) {
	b.emitByte(byte(OpConstInt64))
	b.emitByte(a)
	b.emitI64(v)
}

func (b *Builder) ConstNum(a byte, v float64) {
	b.emitByte(byte(OpConstNum))
	b.emitByte(a)
	b.emitF64(v)
}

func (b *Builder) ConstPrimitive(a byte, tag byte) {
	b.emitByte(byte(OpConstPrimitive))
	b.emitByte(a)
	b.emitByte(tag)
}

func (b *Builder) ConstString(a byte, strref uint32) {
	b.emitByte(byte(OpConstString))
	b.emitByte(a)
	b.emitU32(strref)
}

// Op3 emits any A,B,C-shaped opcode (Add, Sub, Equal and the other
// binaries, etc.).
func (b *Builder) Op3(op Op, a, c, d byte) {
	b.emitByte(byte(op))
	b.emitByte(a)
	b.emitByte(c)
	b.emitByte(d)
}

// Op2 emits any A,B-shaped opcode (Move, Copy, Negate, BuildError, ...).
func (b *Builder) Op2(op Op, a, c byte) {
	b.emitByte(byte(op))
	b.emitByte(a)
	b.emitByte(c)
}

// Op1 emits any single-register opcode (LoadThis, Discard).
func (b *Builder) Op1(op Op, a byte) {
	b.emitByte(byte(op))
	b.emitByte(a)
}

func (b *Builder) Try(a, c byte) { b.Op2(OpTry, a, c) }

// Jump emits a Jump and returns the code offset of its i32 operand, to be
// filled in later via PatchJump once the target is known.
func (b *Builder) Jump() int {
	b.emitByte(byte(OpJump))
	pos := len(b.code)
	b.emitI32(0)
	return pos
}

// CondJump emits JumpTrue/JumpFalse/JumpNone/JumpNotError A, and returns the
// operand offset to patch.
func (b *Builder) CondJump(op Op, a byte) int {
	b.emitByte(byte(op))
	b.emitByte(a)
	pos := len(b.code)
	b.emitU32(0)
	return pos
}

// PatchJump writes target (an absolute code offset) into the OpJump i32
// operand at operandPos as a relative offset. The conditional forms take an
// absolute u32 operand and are patched with PatchAddr instead.
func (b *Builder) PatchJump(operandPos int, target int) {
	// Relative jumps are computed from the address immediately after the
	// operand (i.e. where ip sits once the jump instruction is decoded).
	rel := int32(target - (operandPos + 4))
	binary.LittleEndian.PutUint32(b.code[operandPos:operandPos+4], uint32(rel))
}

func (b *Builder) PatchAddr(operandPos int, target int) {
	binary.LittleEndian.PutUint32(b.code[operandPos:operandPos+4], uint32(target))
}

func (b *Builder) IterInit(a, c byte) { b.Op2(OpIterInit, a, c) }
func (b *Builder) IterNext(a, c byte) { b.Op2(OpIterNext, a, c) }

func (b *Builder) BuildError(a, c byte)  { b.Op2(OpBuildError, a, c) }
func (b *Builder) UnwrapError(a, c byte) { b.Op2(OpUnwrapError, a, c) }

func (b *Builder) Import(a byte, strref uint32) {
	b.emitByte(byte(OpImport))
	b.emitByte(a)
	b.emitU32(strref)
}

func (b *Builder) BuildNative(a byte, strref uint32) {
	b.emitByte(byte(OpBuildNative))
	b.emitByte(a)
	b.emitU32(strref)
}

func (b *Builder) buildAggregate(op Op, a, base byte, count uint16) {
	b.emitByte(byte(op))
	b.emitByte(a)
	b.emitByte(base)
	b.emitU16(count)
}

func (b *Builder) BuildRange(a, start, end byte) { b.Op3(OpBuildRange, a, start, end) }

func (b *Builder) BuildTuple(a, base byte, count uint16) { b.buildAggregate(OpBuildTuple, a, base, count) }
func (b *Builder) BuildList(a, base byte, count uint16)  { b.buildAggregate(OpBuildList, a, base, count) }
func (b *Builder) BuildMap(a, base byte, count uint16)   { b.buildAggregate(OpBuildMap, a, base, count) }

// BuildFn emits the instruction and returns the operand offset of
// entry_offset, to be patched via PatchAddr once the function body's
// address is assigned.
func (b *Builder) BuildFn(a byte, argCount, captureCount byte) int {
	b.emitByte(byte(OpBuildFn))
	b.emitByte(a)
	b.emitByte(argCount)
	b.emitByte(captureCount)
	pos := len(b.code)
	b.emitU32(0)
	return pos
}

func (b *Builder) LoadCapture(a, n byte) {
	b.emitByte(byte(OpLoadCapture))
	b.emitByte(a)
	b.emitByte(n)
}

func (b *Builder) StoreCapture(targetFunc, valueReg, n byte) {
	b.emitByte(byte(OpStoreCapture))
	b.emitByte(targetFunc)
	b.emitByte(valueReg)
	b.emitByte(n)
}

func (b *Builder) Get(a, c, d byte) { b.Op3(OpGet, a, c, d) }
func (b *Builder) Set(a, c, d byte) { b.Op3(OpSet, a, c, d) }

func (b *Builder) As(a, c, typeID byte) { b.Op3(OpAs, a, c, typeID) }
func (b *Builder) Is(a, c, typeID byte) { b.Op3(OpIs, a, c, typeID) }

func (b *Builder) Call(retReg, funcReg, argBaseReg byte, argCount uint16) {
	b.emitByte(byte(OpCall))
	b.emitByte(retReg)
	b.emitByte(funcReg)
	b.emitByte(argBaseReg)
	b.emitU16(argCount)
}

func (b *Builder) Return(a byte)  { b.Op1(OpReturn, a) }
func (b *Builder) ReturnNone()    { b.emitByte(byte(OpReturnNone)) }
func (b *Builder) LoadThis(a byte) { b.Op1(OpLoadThis, a) }
func (b *Builder) Discard(a byte)  { b.Op1(OpDiscard, a) }

func (b *Builder) LineInfo(line uint32) {
	b.emitByte(byte(OpLineInfo))
	b.emitU32(line)
}

// Finish produces the immutable Module for name, with entry as its first
// executable instruction offset (0 for a top-level module).
func (b *Builder) Finish(name string, entry uint32) *Module {
	return &Module{
		Name:    name,
		Code:    b.code,
		Strings: b.strings,
		Entry:   entry,
	}
}
