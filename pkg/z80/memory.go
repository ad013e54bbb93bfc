package z80

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sema/z80emu/pkg/intelhex"
)

const (
	bytes08k = 0x2000
	bytes16k = bytes08k * 2
	bytes32k = bytes16k * 2
	bytes64k = bytes32k * 2

	// MemorySize is the number of addressable bytes of memory.
	MemorySize = bytes64k

	// PortCount is the number of addressable I/O ports.
	PortCount = 256
)

// AccessMode determines which operations reach the backing store of an
// address. The zero value allows both reads and writes.
type AccessMode uint8

const (
	AccessReadAndWrite AccessMode = iota
	AccessReadOnly
	AccessWriteOnly
	AccessNone
)

var accessModeNames = map[AccessMode]string{
	AccessReadAndWrite: "ReadAndWrite",
	AccessReadOnly:     "ReadOnly",
	AccessWriteOnly:    "WriteOnly",
	AccessNone:         "None",
}

func (m AccessMode) String() string {
	name, ok := accessModeNames[m]
	if !ok {
		return "Unknown"
	}
	return name
}

func (m AccessMode) canRead() bool {
	return m == AccessReadAndWrite || m == AccessReadOnly
}

func (m AccessMode) canWrite() bool {
	return m == AccessReadAndWrite || m == AccessWriteOnly
}

// Store is the pluggable backing storage of an AddressSpace.
//
// Read and Write never fail: out of bounds reads return 0xFF and out of
// bounds writes are dropped. Bulk transfers are bounds checked.
type Store interface {
	Size() int
	Read(address int) byte
	Write(address int, v byte)
	SetContents(start int, data []byte) error
	GetContents(start, length int) ([]byte, error)
}

// PlainMemory is a flat byte array with no banking.
type PlainMemory struct {
	data []byte
}

// NewPlainMemory returns size bytes of zeroed RAM.
func NewPlainMemory(size int) *PlainMemory {
	return &PlainMemory{data: make([]byte, size)}
}

func (m *PlainMemory) Size() int {
	return len(m.data)
}

func (m *PlainMemory) Read(address int) byte {
	if address < 0 || address >= len(m.data) {
		return 0xFF
	}
	return m.data[address]
}

func (m *PlainMemory) Write(address int, v byte) {
	if address < 0 || address >= len(m.data) {
		return
	}
	m.data[address] = v
}

func (m *PlainMemory) SetContents(start int, data []byte) error {
	if err := checkBounds(len(m.data), start, len(data)); err != nil {
		return err
	}
	copy(m.data[start:], data)
	return nil
}

func (m *PlainMemory) GetContents(start, length int) ([]byte, error) {
	if err := checkBounds(len(m.data), start, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[start:start+length])
	return out, nil
}

func checkBounds(size, start, length int) error {
	if start < 0 || length < 0 || start+length > size {
		return errors.Wrapf(ErrOutOfRange, "slice [%#x, %#x) exceeds store of %#x bytes", start, start+length, size)
	}
	return nil
}

// AddressSpace puts access modes and wait states in front of a Store. The
// processor uses one for memory (with separate M1 wait states) and one for
// ports.
type AddressSpace struct {
	name  string
	store Store

	modes        []AccessMode
	waitStates   []byte
	m1WaitStates []byte
}

func newAddressSpace(name string, store Store, size int, withM1 bool) *AddressSpace {
	a := &AddressSpace{
		name:       name,
		store:      store,
		modes:      make([]AccessMode, size),
		waitStates: make([]byte, size),
	}
	if withM1 {
		a.m1WaitStates = make([]byte, size)
	}
	return a
}

// Size is the number of addresses, independent of the store size.
func (a *AddressSpace) Size() int {
	return len(a.modes)
}

// Store returns the backing store.
func (a *AddressSpace) Store() Store {
	return a.store
}

// Read returns the byte at address, or 0xFF when the address is out of range
// or its access mode forbids reading.
func (a *AddressSpace) Read(address int) byte {
	if address < 0 || address >= len(a.modes) || !a.modes[address].canRead() {
		return 0xFF
	}
	return a.store.Read(address)
}

// Write stores v at address unless the address is out of range or its
// access mode forbids writing.
func (a *AddressSpace) Write(address int, v byte) {
	if address < 0 || address >= len(a.modes) || !a.modes[address].canWrite() {
		return
	}
	a.store.Write(address, v)
}

func (a *AddressSpace) SetContents(start int, data []byte) error {
	return errors.Wrapf(a.store.SetContents(start, data), "%s: set contents", a.name)
}

func (a *AddressSpace) GetContents(start, length int) ([]byte, error) {
	data, err := a.store.GetContents(start, length)
	return data, errors.Wrapf(err, "%s: get contents", a.name)
}

func (a *AddressSpace) checkRegion(start, length int) error {
	if start < 0 || length <= 0 || start+length > len(a.modes) {
		return errors.Wrapf(ErrConfiguration, "%s: region [%#x, %#x) outside of [0, %#x)", a.name, start, start+length, len(a.modes))
	}
	return nil
}

func (a *AddressSpace) AccessMode(address int) AccessMode {
	if address < 0 || address >= len(a.modes) {
		return AccessNone
	}
	return a.modes[address]
}

// SetAccessMode applies mode to length addresses starting at start.
func (a *AddressSpace) SetAccessMode(start, length int, mode AccessMode) error {
	if err := a.checkRegion(start, length); err != nil {
		return err
	}
	if _, ok := accessModeNames[mode]; !ok {
		return errors.Wrapf(ErrConfiguration, "%s: unknown access mode %d", a.name, mode)
	}
	for i := start; i < start+length; i++ {
		a.modes[i] = mode
	}
	return nil
}

// WaitStates returns the extra T-states billed for a non-M1 access.
func (a *AddressSpace) WaitStates(address int) int {
	if address < 0 || address >= len(a.waitStates) {
		return 0
	}
	return int(a.waitStates[address])
}

// M1WaitStates returns the extra T-states billed for an opcode fetch.
func (a *AddressSpace) M1WaitStates(address int) int {
	if a.m1WaitStates == nil || address < 0 || address >= len(a.m1WaitStates) {
		return 0
	}
	return int(a.m1WaitStates[address])
}

func (a *AddressSpace) SetWaitStates(start, length int, count byte) error {
	if err := a.checkRegion(start, length); err != nil {
		return err
	}
	for i := start; i < start+length; i++ {
		a.waitStates[i] = count
	}
	return nil
}

func (a *AddressSpace) SetM1WaitStates(start, length int, count byte) error {
	if a.m1WaitStates == nil {
		return errors.Wrapf(ErrConfiguration, "%s: no M1 cycles", a.name)
	}
	if err := a.checkRegion(start, length); err != nil {
		return err
	}
	for i := start; i < start+length; i++ {
		a.m1WaitStates[i] = count
	}
	return nil
}

// LoadIntelHex copies every data record of an Intel-HEX stream into the
// store at base + record address.
func (a *AddressSpace) LoadIntelHex(r io.Reader, base int) error {
	return intelhex.Decode(r, func(rec intelhex.Record) error {
		if rec.Type != intelhex.RecordData {
			return nil
		}
		return a.SetContents(base+int(rec.Address), rec.Data)
	})
}

// SaveIntelHex writes length bytes starting at start as Intel-HEX.
func (a *AddressSpace) SaveIntelHex(w io.Writer, start, length int) error {
	if start < 0 || start > 0xFFFF {
		return errors.Wrapf(ErrOutOfRange, "%s: start address %#x", a.name, start)
	}
	data, err := a.GetContents(start, length)
	if err != nil {
		return err
	}
	return intelhex.Write(w, uint16(start), data)
}
