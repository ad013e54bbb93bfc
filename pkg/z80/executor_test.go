package z80

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstructions(t *testing.T) {
	tests := []struct {
		name        string
		program     []byte
		setup       func(t *testing.T, p *Processor)
		steps       int
		want        map[Register16]uint16
		wantTStates uint64
		check       func(t *testing.T, p *Processor)
	}{
		{
			name:        "LD A,n; INC A",
			program:     []byte{0x3E, 0x01, 0x3C},
			steps:       2,
			want:        map[Register16]uint16{RegisterAF: 0x0201, RegisterPC: 0x0003},
			wantTStates: 11,
		},
		{
			name:        "ADD A,B overflows into the sign bit",
			program:     []byte{0x3E, 0x7F, 0x06, 0x01, 0x80},
			steps:       3,
			want:        map[Register16]uint16{RegisterAF: 0x8094},
			wantTStates: 18,
		},
		{
			name:        "SUB n borrows",
			program:     []byte{0x3E, 0x00, 0xD6, 0x01},
			steps:       2,
			want:        map[Register16]uint16{RegisterAF: 0xFFBB},
			wantTStates: 14,
		},
		{
			name:        "XOR A clears A",
			program:     []byte{0xAF},
			steps:       1,
			want:        map[Register16]uint16{RegisterAF: 0x0044},
			wantTStates: 4,
		},
		{
			name:        "CP n takes flags 3 and 5 from the operand",
			program:     []byte{0x3E, 0x00, 0xFE, 0x28},
			steps:       2,
			want:        map[Register16]uint16{RegisterAF: 0x00BB},
			wantTStates: 14,
		},
		{
			name:        "LD (HL),n; LD A,(HL)",
			program:     []byte{0x21, 0x00, 0x80, 0x36, 0x42, 0x7E},
			steps:       3,
			want:        map[Register16]uint16{RegisterHL: 0x8000},
			wantTStates: 27,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, byte(0x42), p.Registers().Read8(RegisterA))
			},
		},
		{
			name:        "PUSH BC; POP DE",
			program:     []byte{0x01, 0x34, 0x12, 0xC5, 0xD1},
			steps:       3,
			want:        map[Register16]uint16{RegisterDE: 0x1234, RegisterSP: 0xFFFF},
			wantTStates: 31,
		},
		{
			name:        "CALL and RET",
			program:     []byte{0x31, 0x00, 0x90, 0xCD, 0x08, 0x00, 0x00, 0x00, 0xC9},
			steps:       3,
			want:        map[Register16]uint16{RegisterPC: 0x0006, RegisterSP: 0x9000},
			wantTStates: 37,
		},
		{
			name:        "DJNZ loops until B is zero",
			program:     []byte{0x06, 0x03, 0x10, 0xFE},
			steps:       4,
			want:        map[Register16]uint16{RegisterBC: 0x0000, RegisterPC: 0x0004},
			wantTStates: 41,
		},
		{
			name:        "JR d jumps backwards",
			program:     []byte{0x00, 0x18, 0xFD},
			steps:       2,
			want:        map[Register16]uint16{RegisterPC: 0x0000},
			wantTStates: 16,
		},
		{
			name:        "JP NZ not taken",
			program:     []byte{0xC2, 0x00, 0x10},
			steps:       1,
			want:        map[Register16]uint16{RegisterPC: 0x0003},
			wantTStates: 10,
		},
		{
			name:        "RET NZ not taken",
			program:     []byte{0xC0},
			steps:       1,
			want:        map[Register16]uint16{RegisterPC: 0x0001, RegisterSP: 0xFFFF},
			wantTStates: 5,
		},
		{
			name:        "RST 38h",
			program:     []byte{0x31, 0x00, 0x90, 0xFF},
			steps:       2,
			want:        map[Register16]uint16{RegisterPC: 0x0038, RegisterSP: 0x8FFE},
			wantTStates: 21,
			check: func(t *testing.T, p *Processor) {
				data, err := p.Memory().GetContents(0x8FFE, 2)
				require.NoError(t, err)
				require.Equal(t, []byte{0x04, 0x00}, data)
			},
		},
		{
			name:    "EX AF,AF'",
			program: []byte{0x3E, 0x11, 0x08, 0x3E, 0x22},
			steps:   3,
			want:    map[Register16]uint16{RegisterAF: 0x2200, RegisterAltAF: 0x11FF},
		},
		{
			name:    "EXX swaps BC, DE and HL",
			program: []byte{0x01, 0x11, 0x11, 0x11, 0x22, 0x22, 0x21, 0x33, 0x33, 0xD9},
			steps:   4,
			want: map[Register16]uint16{
				RegisterBC: 0, RegisterDE: 0, RegisterHL: 0,
				RegisterAltBC: 0x1111, RegisterAltDE: 0x2222, RegisterAltHL: 0x3333,
			},
		},
		{
			name:    "EX (SP),HL",
			program: []byte{0x31, 0x00, 0x90, 0x21, 0x34, 0x12, 0xE3},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x9000, []byte{0xCD, 0xAB}))
			},
			steps:       3,
			want:        map[Register16]uint16{RegisterHL: 0xABCD},
			wantTStates: 39,
			check: func(t *testing.T, p *Processor) {
				data, err := p.Memory().GetContents(0x9000, 2)
				require.NoError(t, err)
				require.Equal(t, []byte{0x34, 0x12}, data)
			},
		},
		{
			name:        "DAA after BCD addition",
			program:     []byte{0x3E, 0x15, 0xC6, 0x27, 0x27},
			steps:       3,
			want:        map[Register16]uint16{RegisterAF: 0x4214},
			wantTStates: 18,
		},
		{
			name:    "RLCA",
			program: []byte{0x3E, 0x81, 0x07},
			steps:   2,
			want:    map[Register16]uint16{RegisterAF: 0x03C5},
		},
		{
			name:        "OUT (n),A; IN A,(n)",
			program:     []byte{0x3E, 0x5A, 0xD3, 0x10, 0x3E, 0x00, 0xDB, 0x10},
			steps:       4,
			wantTStates: 36,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, byte(0x5A), p.Registers().Read8(RegisterA))
			},
		},
		{
			name:        "RLC B",
			program:     []byte{0x06, 0x81, 0xCB, 0x00},
			steps:       2,
			want:        map[Register16]uint16{RegisterBC: 0x0300, RegisterAF: 0xFF05},
			wantTStates: 15,
		},
		{
			name:        "BIT 7,A of zero",
			program:     []byte{0x3E, 0x00, 0xCB, 0x7F},
			steps:       2,
			want:        map[Register16]uint16{RegisterAF: 0x0055},
			wantTStates: 15,
		},
		{
			name:        "SET 3,(HL)",
			program:     []byte{0x21, 0x00, 0x80, 0xCB, 0xDE},
			steps:       2,
			wantTStates: 25,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, byte(0x08), p.Memory().Read(0x8000))
			},
		},
		{
			name:        "LD IX,nn; LD (nn),IX; LD IY,(nn)",
			program:     []byte{0xDD, 0x21, 0x34, 0x12, 0xDD, 0x22, 0x00, 0x80, 0xFD, 0x2A, 0x00, 0x80},
			steps:       3,
			want:        map[Register16]uint16{RegisterIX: 0x1234, RegisterIY: 0x1234},
			wantTStates: 54,
			check: func(t *testing.T, p *Processor) {
				data, err := p.Memory().GetContents(0x8000, 2)
				require.NoError(t, err)
				require.Equal(t, []byte{0x34, 0x12}, data)
			},
		},
		{
			name:        "ADD A,IXH; ADD A,IXL",
			program:     []byte{0xDD, 0x21, 0x23, 0x12, 0x3E, 0x00, 0xDD, 0x84, 0xDD, 0x85},
			steps:       4,
			want:        map[Register16]uint16{RegisterAF: 0x3520},
			wantTStates: 37,
		},
		{
			name:    "LD B,(IX+d) with negative displacement",
			program: []byte{0xDD, 0x21, 0x10, 0x80, 0xDD, 0x46, 0xF0},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8000, []byte{0x99}))
			},
			steps:       2,
			want:        map[Register16]uint16{RegisterBC: 0x9900},
			wantTStates: 33,
		},
		{
			name:    "LD H,(IX+d) loads the real H",
			program: []byte{0xDD, 0x21, 0x00, 0x80, 0xDD, 0x66, 0x01},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8001, []byte{0x77}))
			},
			steps: 2,
			want:  map[Register16]uint16{RegisterHL: 0x7700, RegisterIX: 0x8000},
		},
		{
			name:        "DD before an unaffected opcode adds 4 T-states",
			program:     []byte{0xDD, 0x3C},
			steps:       1,
			want:        map[Register16]uint16{RegisterAF: 0x0051, RegisterPC: 0x0002},
			wantTStates: 8,
		},
		{
			name:        "DD followed by FD is a NOP",
			program:     []byte{0xDD, 0xFD, 0x21, 0x34, 0x12},
			steps:       1,
			want:        map[Register16]uint16{RegisterPC: 0x0001, RegisterIX: 0, RegisterIY: 0},
			wantTStates: 4,
		},
		{
			name:        "FD after the ignored DD uses IY",
			program:     []byte{0xDD, 0xFD, 0x21, 0x34, 0x12},
			steps:       2,
			want:        map[Register16]uint16{RegisterIX: 0, RegisterIY: 0x1234},
			wantTStates: 18,
		},
		{
			name:    "RLC (IX+d) copies the result into B",
			program: []byte{0xDD, 0x21, 0x00, 0x80, 0xDD, 0xCB, 0x01, 0x00},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8001, []byte{0x81}))
			},
			steps:       2,
			want:        map[Register16]uint16{RegisterBC: 0x0300, RegisterAF: 0xFF05, RegisterPC: 0x0008},
			wantTStates: 37,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, byte(0x03), p.Memory().Read(0x8001))
			},
		},
		{
			name:    "BIT 0,(IY+d)",
			program: []byte{0xFD, 0x21, 0x00, 0x80, 0xFD, 0xCB, 0x00, 0x46},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8000, []byte{0x01}))
			},
			steps:       2,
			want:        map[Register16]uint16{RegisterAF: 0xFF11},
			wantTStates: 34,
		},
		{
			name:    "LDIR copies the block",
			program: []byte{0x21, 0x00, 0x80, 0x11, 0x00, 0x90, 0x01, 0x03, 0x00, 0xED, 0xB0},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8000, []byte{1, 2, 3}))
			},
			steps: 6,
			want: map[Register16]uint16{
				RegisterHL: 0x8003, RegisterDE: 0x9003, RegisterBC: 0, RegisterPC: 0x000B,
			},
			wantTStates: 88,
			check: func(t *testing.T, p *Processor) {
				data, err := p.Memory().GetContents(0x9000, 3)
				require.NoError(t, err)
				require.Equal(t, []byte{1, 2, 3}, data)
				require.False(t, p.Registers().Flag(FlagParityOverflow))
			},
		},
		{
			name:    "CPIR stops on a match",
			program: []byte{0x21, 0x00, 0x80, 0x01, 0x10, 0x00, 0x3E, 0x02, 0xED, 0xB1},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8000, []byte{1, 2, 3}))
			},
			steps:       5,
			want:        map[Register16]uint16{RegisterHL: 0x8002, RegisterBC: 0x000E, RegisterPC: 0x000A},
			wantTStates: 10 + 10 + 7 + 21 + 16,
			check: func(t *testing.T, p *Processor) {
				require.True(t, p.Registers().Flag(FlagZero))
				require.True(t, p.Registers().Flag(FlagParityOverflow))
			},
		},
		{
			name:        "NEG",
			program:     []byte{0x3E, 0x01, 0xED, 0x44},
			steps:       2,
			want:        map[Register16]uint16{RegisterAF: 0xFFBB},
			wantTStates: 15,
		},
		{
			name:        "SBC HL,DE",
			program:     []byte{0x21, 0x00, 0x10, 0x11, 0x01, 0x00, 0xB7, 0xED, 0x52},
			steps:       4,
			want:        map[Register16]uint16{RegisterHL: 0x0FFF},
			wantTStates: 39,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, byte(0x1A), p.Registers().Read8(RegisterF))
			},
		},
		{
			name:    "LD (nn),SP via ED",
			program: []byte{0x31, 0x34, 0x12, 0xED, 0x73, 0x00, 0x80},
			steps:   2,
			check: func(t *testing.T, p *Processor) {
				data, err := p.Memory().GetContents(0x8000, 2)
				require.NoError(t, err)
				require.Equal(t, []byte{0x34, 0x12}, data)
			},
			wantTStates: 30,
		},
		{
			name:        "undefined ED opcode is an 8 T-state NOP",
			program:     []byte{0xED, 0x00},
			steps:       1,
			want:        map[Register16]uint16{RegisterPC: 0x0002},
			wantTStates: 8,
		},
		{
			name:    "LD A,I copies IFF2 into P/V",
			program: []byte{0xED, 0x57},
			setup: func(t *testing.T, p *Processor) {
				p.Registers().SetIFF2(true)
			},
			steps:       1,
			want:        map[Register16]uint16{RegisterAF: 0x0045},
			wantTStates: 9,
		},
		{
			name:    "RETN restores IFF1 from IFF2",
			program: []byte{0x31, 0x00, 0x90, 0xED, 0x45},
			setup: func(t *testing.T, p *Processor) {
				p.Registers().SetIFF2(true)
				require.NoError(t, p.Memory().SetContents(0x9000, []byte{0x00, 0x40}))
			},
			steps:       2,
			want:        map[Register16]uint16{RegisterPC: 0x4000, RegisterSP: 0x9002},
			wantTStates: 24,
			check: func(t *testing.T, p *Processor) {
				require.True(t, p.Registers().IFF1())
			},
		},
		{
			name:    "IM 2",
			program: []byte{0xED, 0x5E},
			steps:   1,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, 2, p.InterruptMode())
			},
		},
		{
			name:    "RLD",
			program: []byte{0x21, 0x00, 0x80, 0x3E, 0x12, 0xED, 0x6F},
			setup: func(t *testing.T, p *Processor) {
				require.NoError(t, p.Memory().SetContents(0x8000, []byte{0x34}))
			},
			steps:       3,
			wantTStates: 35,
			check: func(t *testing.T, p *Processor) {
				require.Equal(t, byte(0x13), p.Registers().Read8(RegisterA))
				require.Equal(t, byte(0x42), p.Memory().Read(0x8000))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.program)
			if tt.setup != nil {
				tt.setup(t, p)
			}

			step(t, p, tt.steps)

			for register, want := range tt.want {
				require.Equal(t, want, p.Registers().Read16(register), "register %s", register)
			}
			if tt.wantTStates != 0 {
				require.Equal(t, tt.wantTStates, p.TStatesElapsedSinceReset())
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestRefreshRegister(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		steps   int
		want    byte
	}{
		{name: "unprefixed", program: []byte{0x00, 0x00}, steps: 2, want: 2},
		{name: "CB prefix", program: []byte{0xCB, 0x00}, steps: 1, want: 2},
		{name: "ED prefix", program: []byte{0xED, 0x44}, steps: 1, want: 2},
		{name: "DD prefix", program: []byte{0xDD, 0x21, 0x00, 0x00}, steps: 1, want: 2},
		{name: "DD CB prefix", program: []byte{0xDD, 0xCB, 0x00, 0x06}, steps: 1, want: 2},
		{name: "DD before DD", program: []byte{0xDD, 0xDD, 0x00}, steps: 2, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.program)
			step(t, p, tt.steps)
			require.Equal(t, tt.want, p.Registers().Read8(RegisterR))
		})
	}
}

func TestFetchInfoClassification(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		want    FetchInfo
	}{
		{name: "RET", program: []byte{0xC9}, want: FetchInfo{IsRet: true}},
		{name: "RET Z taken", program: []byte{0xC8}, want: FetchInfo{IsRet: true}},
		{name: "RET NZ not taken", program: []byte{0xC0}, want: FetchInfo{}},
		{name: "RETI", program: []byte{0xED, 0x4D}, want: FetchInfo{IsRet: true}},
		{name: "LD SP,nn", program: []byte{0x31, 0x00, 0x80}, want: FetchInfo{IsLdSp: true}},
		{name: "LD SP,HL", program: []byte{0xF9}, want: FetchInfo{IsLdSp: true}},
		{name: "LD SP,IY", program: []byte{0xFD, 0xF9}, want: FetchInfo{IsLdSp: true}},
		{name: "LD SP,(nn)", program: []byte{0xED, 0x7B, 0x00, 0x80}, want: FetchInfo{IsLdSp: true}},
		{name: "LD HL,nn", program: []byte{0x21, 0x00, 0x80}, want: FetchInfo{}},
		{name: "EI", program: []byte{0xFB}, want: FetchInfo{IsEiOrDi: true}},
		{name: "DI", program: []byte{0xF3}, want: FetchInfo{IsEiOrDi: true}},
		{name: "HALT", program: []byte{0x76}, want: FetchInfo{IsHalt: true}},
		{name: "DD HALT", program: []byte{0xDD, 0x76}, want: FetchInfo{IsHalt: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.program)
			var got FetchInfo
			p.OnAfterInstructionExecution(func(e *InstructionEvent) {
				got = e.ctx.fetchInfo
			})

			step(t, p, 1)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUnsupportedEDHandler(t *testing.T) {
	var seen []byte
	p := newTestProcessor(t, []byte{0xED, 0x77, 0xED, 0xFF},
		WithUnsupportedEDHandler(func(opcode byte) int {
			seen = append(seen, opcode)
			return 12
		}))

	step(t, p, 2)
	require.Equal(t, []byte{0x77, 0xFF}, seen)
	require.Equal(t, uint64(24), p.TStatesElapsedSinceReset())
}

func TestHaltLeavesPCAfterTheInstruction(t *testing.T) {
	p := newTestProcessor(t, []byte{0x76})
	step(t, p, 1)
	require.True(t, p.IsHalted())
	require.Equal(t, uint16(0x0001), p.Registers().PC())
}
