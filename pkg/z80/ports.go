package z80

import (
	"github.com/pkg/errors"
)

// PortDevice is a peripheral attached to one or more I/O ports.
type PortDevice interface {
	In(port byte) byte
	Out(port byte, v byte)
}

// DevicePorts is a port Store that routes each port to an attached device.
// Ports without a device read 0xFF and ignore writes.
type DevicePorts struct {
	devices [PortCount]PortDevice
}

func NewDevicePorts() *DevicePorts {
	return &DevicePorts{}
}

// Attach routes length ports starting at start to device, replacing any
// previous attachment.
func (d *DevicePorts) Attach(start, length int, device PortDevice) error {
	if start < 0 || length <= 0 || start+length > PortCount {
		return errors.Wrapf(ErrConfiguration, "ports [%#x, %#x) outside of [0, %#x)", start, start+length, PortCount)
	}
	for i := start; i < start+length; i++ {
		d.devices[i] = device
	}
	return nil
}

// Detach removes any device from length ports starting at start.
func (d *DevicePorts) Detach(start, length int) error {
	return d.Attach(start, length, nil)
}

func (d *DevicePorts) Size() int {
	return PortCount
}

func (d *DevicePorts) Read(address int) byte {
	if address < 0 || address >= PortCount || d.devices[address] == nil {
		return 0xFF
	}
	return d.devices[address].In(byte(address))
}

func (d *DevicePorts) Write(address int, v byte) {
	if address < 0 || address >= PortCount || d.devices[address] == nil {
		return
	}
	d.devices[address].Out(byte(address), v)
}

// SetContents writes each byte to its port in order.
func (d *DevicePorts) SetContents(start int, data []byte) error {
	if err := checkBounds(PortCount, start, len(data)); err != nil {
		return err
	}
	for i, v := range data {
		d.Write(start+i, v)
	}
	return nil
}

// GetContents reads each port in order.
func (d *DevicePorts) GetContents(start, length int) ([]byte, error) {
	if err := checkBounds(PortCount, start, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = d.Read(start + i)
	}
	return out, nil
}

// PlainPorts latches the last byte written to each port and reads it back.
type PlainPorts struct {
	data [PortCount]byte
}

func NewPlainPorts() *PlainPorts {
	return &PlainPorts{}
}

func (p *PlainPorts) Size() int {
	return PortCount
}

func (p *PlainPorts) Read(address int) byte {
	if address < 0 || address >= PortCount {
		return 0xFF
	}
	return p.data[address]
}

func (p *PlainPorts) Write(address int, v byte) {
	if address < 0 || address >= PortCount {
		return
	}
	p.data[address] = v
}

func (p *PlainPorts) SetContents(start int, data []byte) error {
	if err := checkBounds(PortCount, start, len(data)); err != nil {
		return err
	}
	copy(p.data[start:], data)
	return nil
}

func (p *PlainPorts) GetContents(start, length int) ([]byte, error) {
	if err := checkBounds(PortCount, start, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, p.data[start:start+length])
	return out, nil
}
