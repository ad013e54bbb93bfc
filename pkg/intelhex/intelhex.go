// Package intelhex reads and writes the Intel-HEX text format.
//
// A record is a single line
//
//	:LLAAAATTDD..DDCC
//
// with LL the number of data bytes, AAAA the 16 bit load address, TT the
// record type, DD the data and CC the two's complement of the sum of all
// previous bytes of the record.
package intelhex

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// RecordType is the TT field of a record.
type RecordType byte

const (
	RecordData                   RecordType = 0x00
	RecordEOF                    RecordType = 0x01
	RecordExtendedSegmentAddress RecordType = 0x02
	RecordStartSegmentAddress    RecordType = 0x03
	RecordExtendedLinearAddress  RecordType = 0x04
	RecordStartLinearAddress     RecordType = 0x05
)

// BytesPerRecord is the payload size Write uses for data records.
const BytesPerRecord = 16

var (
	// ErrChecksum is returned for a record whose checksum does not match.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrMalformedRecord is returned for a truncated or unparsable record.
	ErrMalformedRecord = errors.New("malformed record")
)

// Record is one decoded line.
type Record struct {
	Type    RecordType
	Address uint16
	Data    []byte
}

// Checksum returns the two's complement of the sum of every byte.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}

func (r Record) bytes() []byte {
	raw := make([]byte, 0, len(r.Data)+5)
	raw = append(raw, byte(len(r.Data)), byte(r.Address>>8), byte(r.Address), byte(r.Type))
	raw = append(raw, r.Data...)
	return append(raw, Checksum(raw))
}

// String encodes the record, including its checksum.
func (r Record) String() string {
	return ":" + strings.ToUpper(hex.EncodeToString(r.bytes()))
}

// ParseRecord decodes a single line.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "record %q does not start with ':'", line)
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "record %q: %s", line, err)
	}
	if len(raw) < 5 {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "record %q is too short", line)
	}

	length := int(raw[0])
	if len(raw) != length+5 {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "record %q declares %d data bytes but carries %d", line, length, len(raw)-5)
	}
	if Checksum(raw) != 0 {
		return Record{}, errors.Wrapf(ErrChecksum, "record %q", line)
	}

	return Record{
		Type:    RecordType(raw[3]),
		Address: uint16(raw[1])<<8 | uint16(raw[2]),
		Data:    raw[4 : 4+length],
	}, nil
}

// Decode calls fn for every record of r, stopping after the end-of-file
// record. Blank lines are skipped. A record that fails to parse stops the
// decode with an error naming its line.
func Decode(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := ParseRecord(line)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNumber)
		}
		if err := fn(rec); err != nil {
			return errors.Wrapf(err, "line %d", lineNumber)
		}
		if rec.Type == RecordEOF {
			return nil
		}
	}
	return errors.Wrap(scanner.Err(), "read intel hex")
}

// Read returns every record of r up to and including end-of-file.
func Read(r io.Reader) ([]Record, error) {
	var records []Record
	err := Decode(r, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Write encodes data loaded at address as 16 byte data records followed by
// a single end-of-file record.
func Write(w io.Writer, address uint16, data []byte) error {
	if int(address)+len(data) > 0x10000 {
		return errors.Wrapf(ErrMalformedRecord, "%d bytes at %#04x exceed the 16 bit address space", len(data), address)
	}

	bw := bufio.NewWriter(w)
	for offset := 0; offset < len(data); offset += BytesPerRecord {
		end := offset + BytesPerRecord
		if end > len(data) {
			end = len(data)
		}
		rec := Record{
			Type:    RecordData,
			Address: address + uint16(offset),
			Data:    data[offset:end],
		}
		if _, err := fmt.Fprintln(bw, rec.String()); err != nil {
			return errors.Wrap(err, "write intel hex")
		}
	}
	if _, err := fmt.Fprintln(bw, Record{Type: RecordEOF}.String()); err != nil {
		return errors.Wrap(err, "write intel hex")
	}
	return errors.Wrap(bw.Flush(), "write intel hex")
}
