package z80

import (
	"github.com/pkg/errors"
)

// BankSize is the granularity of BankedMemory.
const BankSize = bytes08k

// BankType determines how a bank of BankedMemory reacts to the bus.
type BankType uint8

const (
	// BankRam accepts reads and writes.
	BankRam BankType = iota

	// BankRom accepts reads. Writes from the bus are ignored, only
	// SetContents can change it.
	BankRom

	// BankNone is not connected: it reads 0xFF and ignores writes.
	BankNone
)

var bankTypeNames = map[BankType]string{
	BankRam:  "RAM",
	BankRom:  "ROM",
	BankNone: "None",
}

func (b BankType) String() string {
	name, ok := bankTypeNames[b]
	if !ok {
		return "Unknown"
	}
	return name
}

// BankedMemory is memory split into 8KiB banks, each with its own BankType.
//
// - 0x0000-0x1FFF  Bank 0
// - 0x2000-0x3FFF  Bank 1
// - ...
// - 0xE000-0xFFFF  Bank 7
type BankedMemory struct {
	// data contains the contents of every bank, including ROM and
	// disconnected ones
	data []byte

	banks []BankType
}

// NewBankedMemory returns size bytes of RAM. size is rounded up to a whole
// number of banks.
func NewBankedMemory(size int) *BankedMemory {
	count := (size + BankSize - 1) / BankSize
	return &BankedMemory{
		data:  make([]byte, count*BankSize),
		banks: make([]BankType, count),
	}
}

// SetBankType changes the type of bank n.
func (m *BankedMemory) SetBankType(n int, t BankType) error {
	if n < 0 || n >= len(m.banks) {
		return errors.Wrapf(ErrConfiguration, "bank %d out of range (want less than %d)", n, len(m.banks))
	}
	if _, ok := bankTypeNames[t]; !ok {
		return errors.Wrapf(ErrConfiguration, "unknown bank type %d", t)
	}
	m.banks[n] = t
	return nil
}

// BankType returns the type of the bank containing address.
func (m *BankedMemory) BankType(address int) BankType {
	if address < 0 || address >= len(m.data) {
		return BankNone
	}
	return m.banks[address/BankSize]
}

func (m *BankedMemory) Size() int {
	return len(m.data)
}

func (m *BankedMemory) Read(address int) byte {
	if m.BankType(address) == BankNone {
		return 0xFF
	}
	return m.data[address]
}

func (m *BankedMemory) Write(address int, v byte) {
	if m.BankType(address) != BankRam {
		// ROM and disconnected banks silently drop bus writes
		return
	}
	m.data[address] = v
}

// SetContents loads data regardless of bank types, which is how ROM images
// get into the address space.
func (m *BankedMemory) SetContents(start int, data []byte) error {
	if err := checkBounds(len(m.data), start, len(data)); err != nil {
		return err
	}
	copy(m.data[start:], data)
	return nil
}

func (m *BankedMemory) GetContents(start, length int) ([]byte, error) {
	if err := checkBounds(len(m.data), start, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[start:start+length])
	return out, nil
}
