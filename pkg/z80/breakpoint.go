package z80

// Breakpoint stops the execution loop when PC reaches Address, before the
// instruction at Address executes. Several breakpoints may share a name.
type Breakpoint struct {
	Name    string
	Address uint16
}

// AddBreakpoint activates a breakpoint.
func (p *Processor) AddBreakpoint(name string, address uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.breakpoints = append(p.breakpoints, Breakpoint{Name: name, Address: address})
	p.breakpointAddresses[address] = struct{}{}
}

// RemoveBreakpoints removes every breakpoint called name.
func (p *Processor) RemoveBreakpoints(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.breakpoints[:0]
	for _, b := range p.breakpoints {
		if b.Name != name {
			kept = append(kept, b)
		}
	}
	p.breakpoints = kept

	// rebuilt from scratch, another breakpoint may share a removed address
	p.breakpointAddresses = make(map[uint16]struct{}, len(p.breakpoints))
	for _, b := range p.breakpoints {
		p.breakpointAddresses[b.Address] = struct{}{}
	}
}

func (p *Processor) ClearBreakpoints() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.breakpoints = nil
	p.breakpointAddresses = make(map[uint16]struct{})
}

// Breakpoints returns the active breakpoints in the order they were added.
func (p *Processor) Breakpoints() []Breakpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Breakpoint(nil), p.breakpoints...)
}

func (p *Processor) isBreakpoint(address uint16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.breakpointAddresses[address]
	return ok
}
