package z80

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Register8 is the byte offset of an 8 bit register inside the register file.
type Register8 uint

// Register16 is the byte offset of a 16 bit register inside the register file.
type Register16 uint

// Flag is the bit position of a flag inside the F register.
type Flag uint8

const (
	RegisterF   Register8 = 0
	RegisterA   Register8 = 1
	RegisterC   Register8 = 2
	RegisterB   Register8 = 3
	RegisterE   Register8 = 4
	RegisterD   Register8 = 5
	RegisterL   Register8 = 6
	RegisterH   Register8 = 7
	RegisterIXL Register8 = 16
	RegisterIXH Register8 = 17
	RegisterIYL Register8 = 18
	RegisterIYH Register8 = 19
	RegisterR   Register8 = 24
	RegisterI   Register8 = 25
)

const (
	RegisterAF    Register16 = 0
	RegisterBC    Register16 = 2
	RegisterDE    Register16 = 4
	RegisterHL    Register16 = 6
	RegisterAltAF Register16 = 8
	RegisterAltBC Register16 = 10
	RegisterAltDE Register16 = 12
	RegisterAltHL Register16 = 14
	RegisterIX    Register16 = 16
	RegisterIY    Register16 = 18
	RegisterSP    Register16 = 20
	RegisterPC    Register16 = 22
	RegisterIR    Register16 = 24

	registerFileSize = 26
)

const (
	FlagCarry          Flag = 0
	FlagAddSubtract    Flag = 1
	FlagParityOverflow Flag = 2
	Flag3              Flag = 3
	FlagHalfCarry      Flag = 4
	Flag5              Flag = 5
	FlagZero           Flag = 6
	FlagSign           Flag = 7
)

var register8Names = map[Register8]string{
	RegisterF:   "F",
	RegisterA:   "A",
	RegisterC:   "C",
	RegisterB:   "B",
	RegisterE:   "E",
	RegisterD:   "D",
	RegisterL:   "L",
	RegisterH:   "H",
	RegisterIXL: "IXL",
	RegisterIXH: "IXH",
	RegisterIYL: "IYL",
	RegisterIYH: "IYH",
	RegisterR:   "R",
	RegisterI:   "I",
}

var register16Names = map[Register16]string{
	RegisterAF:    "AF",
	RegisterBC:    "BC",
	RegisterDE:    "DE",
	RegisterHL:    "HL",
	RegisterAltAF: "AF'",
	RegisterAltBC: "BC'",
	RegisterAltDE: "DE'",
	RegisterAltHL: "HL'",
	RegisterIX:    "IX",
	RegisterIY:    "IY",
	RegisterSP:    "SP",
	RegisterPC:    "PC",
	RegisterIR:    "IR",
}

var flagNames = map[Flag]string{
	FlagCarry:          "C",
	FlagAddSubtract:    "N",
	FlagParityOverflow: "P/V",
	Flag3:              "3",
	FlagHalfCarry:      "H",
	Flag5:              "5",
	FlagZero:           "Z",
	FlagSign:           "S",
}

func (r Register8) String() string {
	name, ok := register8Names[r]
	if !ok {
		panic(fmt.Sprintf("unable to determine name of register (%d)", r))
	}

	return name
}

func (r Register16) String() string {
	name, ok := register16Names[r]
	if !ok {
		panic(fmt.Sprintf("unable to determine name of register (%d)", r))
	}

	return name
}

func (f Flag) String() string {
	name, ok := flagNames[f]
	if !ok {
		panic(fmt.Sprintf("unable to determine name of flag (%d)", f))
	}

	return name
}

// RegisterChangedFunc is called after every mutating register write, with
// the register name and its new value.
type RegisterChangedFunc func(name string, value uint16)

// Registers is the register bank of the processor.
//
// All access is serialized by a single mutex, so observers running on other
// goroutines can read registers while the execution loop writes them.
// Change listeners run after the lock is released but before the mutating
// call returns.
type Registers struct {
	mu sync.Mutex

	// data contains every register at predefined offsets (see RegisterX
	// constants). 16 bit registers are stored little-endian, so the 8 bit
	// views of a pair are the low byte at the pair offset and the high byte
	// at offset+1.
	//
	// Structure:
	// 16bit  Hi   Lo   Comment
	// AF     A    F    F holds the flags
	// BC     B    C
	// DE     D    E
	// HL     H    L
	// AF'..HL'         Alternate set, swapped by EX AF,AF' and EXX
	// IX     IXH  IXL
	// IY     IYH  IYL
	// SP     -    -    Stack pointer
	// PC     -    -    Program counter
	// IR     I    R    Interrupt vector and memory refresh
	data []byte

	iff1 bool
	iff2 bool

	startOfStack    uint16
	stackLowerLimit uint16
	stackOverflow   bool
	stackUnderflow  bool
	failOnOverflow  bool
	failOnUnderflow bool
	stackViolations uint64

	listeners []RegisterChangedFunc
}

// NewRegisters returns a register bank in the reset state.
func NewRegisters() *Registers {
	r := &Registers{
		data: make([]byte, registerFileSize),
	}
	r.Reset()
	return r
}

// Reset puts the registers in the state the processor has after power up:
// AF and SP at 0xFFFF, everything else zero, interrupts disabled.
// Reset does not notify listeners.
func (r *Registers) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.data {
		r.data[i] = 0
	}
	binary.LittleEndian.PutUint16(r.data[RegisterAF:], 0xFFFF)
	binary.LittleEndian.PutUint16(r.data[RegisterSP:], 0xFFFF)
	r.iff1 = false
	r.iff2 = false
	r.startOfStack = 0xFFFF
	r.stackOverflow = false
	r.stackUnderflow = false
}

// OnChange registers a listener called after every mutating write.
func (r *Registers) OnChange(fn RegisterChangedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registers) notify(name string, value uint16) {
	r.mu.Lock()
	listeners := r.listeners
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(name, value)
	}
}

func (r *Registers) Read8(register Register8) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[register]
}

func (r *Registers) Write8(register Register8, v byte) {
	r.mu.Lock()
	r.data[register] = v
	r.mu.Unlock()

	r.notify(register.String(), uint16(v))
}

func (r *Registers) Read16(register Register16) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return binary.LittleEndian.Uint16(r.data[register : register+2])
}

func (r *Registers) Write16(register Register16, v uint16) {
	r.mu.Lock()
	binary.LittleEndian.PutUint16(r.data[register:register+2], v)
	r.mu.Unlock()

	r.notify(register.String(), v)
}

// LowByte returns the low byte of a 16 bit register.
func (r *Registers) LowByte(register Register16) byte {
	return r.Read8(Register8(register))
}

// HighByte returns the high byte of a 16 bit register.
func (r *Registers) HighByte(register Register16) byte {
	return r.Read8(Register8(register) + 1)
}

// SetLowByte rewrites bits 0-7 of a 16 bit register only.
func (r *Registers) SetLowByte(register Register16, v byte) {
	r.mu.Lock()
	r.data[register] = v
	word := binary.LittleEndian.Uint16(r.data[register : register+2])
	r.mu.Unlock()

	r.notify(register.String(), word)
}

// SetHighByte rewrites bits 8-15 of a 16 bit register only.
func (r *Registers) SetHighByte(register Register16, v byte) {
	r.mu.Lock()
	r.data[register+1] = v
	word := binary.LittleEndian.Uint16(r.data[register : register+2])
	r.mu.Unlock()

	r.notify(register.String(), word)
}

// Flag returns a single bit of F. It panics with ErrInvalidArgument if flag
// is not one of the eight Flag constants.
func (r *Registers) Flag(flag Flag) bool {
	v, err := Bit(r.Read8(RegisterF), int(flag))
	if err != nil {
		panic(errors.Wrapf(err, "flag %d", flag))
	}
	return v
}

// SetFlag changes a single bit of F, leaving the other seven untouched. It
// panics with ErrInvalidArgument if flag is not one of the Flag constants.
func (r *Registers) SetFlag(flag Flag, v bool) {
	r.mu.Lock()
	f, err := WithBit(r.data[RegisterF], int(flag), v)
	if err != nil {
		r.mu.Unlock()
		panic(errors.Wrapf(err, "flag %d", flag))
	}
	r.data[RegisterF] = f
	r.mu.Unlock()

	r.notify(RegisterF.String(), uint16(f))
}

// Exchange swaps the contents of two 16 bit registers.
func (r *Registers) Exchange(a, b Register16) {
	r.mu.Lock()
	va := binary.LittleEndian.Uint16(r.data[a : a+2])
	vb := binary.LittleEndian.Uint16(r.data[b : b+2])
	binary.LittleEndian.PutUint16(r.data[a:a+2], vb)
	binary.LittleEndian.PutUint16(r.data[b:b+2], va)
	r.mu.Unlock()

	r.notify(a.String(), vb)
	r.notify(b.String(), va)
}

func (r *Registers) PC() uint16 {
	return r.Read16(RegisterPC)
}

func (r *Registers) SetPC(v uint16) {
	r.Write16(RegisterPC, v)
}

func (r *Registers) SP() uint16 {
	return r.Read16(RegisterSP)
}

// SetSP assigns SP without any stack bookkeeping. The processor captures the
// start of the stack when an LD SP instruction completes.
func (r *Registers) SetSP(v uint16) {
	r.Write16(RegisterSP, v)
}

func (r *Registers) IFF1() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.iff1
}

func (r *Registers) SetIFF1(v bool) {
	r.mu.Lock()
	r.iff1 = v
	r.mu.Unlock()

	r.notify("IFF1", boolToWord(v))
}

func (r *Registers) IFF2() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.iff2
}

func (r *Registers) SetIFF2(v bool) {
	r.mu.Lock()
	r.iff2 = v
	r.mu.Unlock()

	r.notify("IFF2", boolToWord(v))
}

// incrementR advances the 7 refresh bits of R, keeping bit 7.
func (r *Registers) incrementR(n byte) {
	r.mu.Lock()
	v := r.data[RegisterR]
	v = v&0x80 | (v+n)&0x7F
	r.data[RegisterR] = v
	r.mu.Unlock()

	r.notify(RegisterR.String(), uint16(v))
}

// StartOfStack is the SP value captured at reset or by the last LD SP.
func (r *Registers) StartOfStack() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startOfStack
}

// SetStartOfStack records SP as the start of the stack.
func (r *Registers) SetStartOfStack(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startOfStack = v
}

// SetStackLowerLimit configures the address below which SP overflows.
func (r *Registers) SetStackLowerLimit(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stackLowerLimit = v
}

func (r *Registers) StackLowerLimit() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stackLowerLimit
}

// SetStackFailFast makes DecSP/IncSP return errors on overflow/underflow in
// addition to recording the sticky flags.
func (r *Registers) SetStackFailFast(overflow, underflow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOnOverflow = overflow
	r.failOnUnderflow = underflow
}

// StackOverflow is true once SP has moved below the lower limit.
func (r *Registers) StackOverflow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stackOverflow
}

// StackUnderflow is true once SP has moved above the start of the stack.
func (r *Registers) StackUnderflow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stackUnderflow
}

// ClearStackFlags resets the sticky overflow and underflow flags.
func (r *Registers) ClearStackFlags() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stackOverflow = false
	r.stackUnderflow = false
}

func (r *Registers) violations() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stackViolations
}

// DecSP moves SP one byte down, as a push does.
func (r *Registers) DecSP() error {
	r.mu.Lock()
	sp := binary.LittleEndian.Uint16(r.data[RegisterSP:]) - 1
	binary.LittleEndian.PutUint16(r.data[RegisterSP:], sp)
	crossed := sp < r.stackLowerLimit
	if crossed {
		r.stackOverflow = true
		r.stackViolations++
	}
	fail := crossed && r.failOnOverflow
	limit := r.stackLowerLimit
	r.mu.Unlock()

	r.notify(RegisterSP.String(), sp)
	if fail {
		return errors.Wrapf(ErrStackOverflow, "SP %#04x below limit %#04x", sp, limit)
	}
	return nil
}

// IncSP moves SP one byte up, as a pop does.
func (r *Registers) IncSP() error {
	r.mu.Lock()
	sp := binary.LittleEndian.Uint16(r.data[RegisterSP:]) + 1
	binary.LittleEndian.PutUint16(r.data[RegisterSP:], sp)

	// Distance is taken modulo 64k so a stack starting at 0x0000 (first push
	// lands on 0xFFFF) is tracked the same way as any other.
	above := sp - r.startOfStack
	crossed := above != 0 && above < 0x8000
	if crossed {
		r.stackUnderflow = true
		r.stackViolations++
	}
	fail := crossed && r.failOnUnderflow
	start := r.startOfStack
	r.mu.Unlock()

	r.notify(RegisterSP.String(), sp)
	if fail {
		return errors.Wrapf(ErrStackUnderflow, "SP %#04x above start of stack %#04x", sp, start)
	}
	return nil
}

func boolToWord(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}
