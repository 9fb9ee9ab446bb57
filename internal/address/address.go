// Package address implements the decompiler's address-space model
// (spec section 3, "Address"): an (address-space, offset) pair, the
// space manager that owns the fixed and join spaces, and the SeqNum
// that orders p-code operations within a function.
//
// The space/size constant tables below follow the layout of the
// teacher's own CPU status-register and addressing-mode constant
// blocks (cpu/cpu.go, cpu/address.go): small typed enums backed by
// plain integer constants, not virtual dispatch.
package address

import "fmt"

// Kind classifies an address space.
type Kind int

const (
	// Constant holds immediate values; offset IS the value.
	Constant Kind = iota
	// Processor is ordinary memory-mapped register/RAM space.
	Processor
	// Spacebase is a space whose offset is relative to a base register.
	Spacebase
	// Internal holds SSA-only temporaries ("uniques").
	Internal
	// Special is reserved for architecture-defined pseudo-spaces.
	Special
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "const"
	case Processor:
		return "processor"
	case Spacebase:
		return "spacebase"
	case Internal:
		return "unique"
	case Special:
		return "special"
	default:
		return "unknown"
	}
}

// Space describes one address space: its index, shortcut letter, word
// size, address size in bytes, endianness and kind. A join space
// additionally lists the piece spaces/offsets it describes (set via
// JoinPieces); its own Size/WordSize describe the concatenated whole.
type Space struct {
	Index      int
	Name       string
	Shortcut   byte
	WordSize   int
	Size       int // address size in bytes
	BigEndian  bool
	Kind       Kind
	JoinPieces []Address // only meaningful when Name == "join"
}

// mask returns the bitmask that wraps an offset to this space's range.
func (s *Space) mask() uint64 {
	bits := uint(s.Size) * 8
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

// Wrap applies the space's address-range wraparound rule to off, so
// that for all a, s: Wrap(Wrap(a+s) - s) == Wrap(a) holds (spec section 8,
// "Round-trips / idempotence").
func (s *Space) Wrap(off uint64) uint64 {
	return off & s.mask()
}

// Address is an (address-space, offset) pair.
type Address struct {
	Space *Space
	Off   uint64
}

// String renders an address as "space:0xoffset", the offset in
// lower-case hex.
func (a Address) String() string {
	if a.Space == nil {
		return "<invalid>"
	}
	return fmt.Sprintf("%s:0x%x", a.Space.Name, a.Off)
}

// IsConstant reports whether a lives in the constant space.
func (a Address) IsConstant() bool {
	return a.Space != nil && a.Space.Kind == Constant
}

// Equal reports whether two addresses name the same storage cell.
func (a Address) Equal(b Address) bool {
	return a.Space == b.Space && a.Off == b.Off
}

// Less provides the canonical (space index, offset) order used for
// Varnode iteration by address (spec section 5, "Ordering").
func (a Address) Less(b Address) bool {
	if a.Space != b.Space {
		return a.Space.Index < b.Space.Index
	}
	return a.Off < b.Off
}

// Add returns the address delta bytes further into the same space,
// wrapped per the space's rule.
func (a Address) Add(delta int64) Address {
	return Address{Space: a.Space, Off: a.Space.Wrap(uint64(int64(a.Off) + delta))}
}

// SeqNum identifies a p-code op within the linearized instruction
// stream: the address of the machine instruction it lowers plus a
// uniq tag assigned at flow time. AnyUniq is the "don't care" sentinel.
type SeqNum struct {
	Addr Address
	Uniq uint32
}

// AnyUniq is the sentinel meaning "any uniq at this address".
const AnyUniq = ^uint32(0)

// Less orders SeqNums by (address, uniq), matching op iteration order.
func (s SeqNum) Less(o SeqNum) bool {
	if !s.Addr.Equal(o.Addr) {
		return s.Addr.Less(o.Addr)
	}
	return s.Uniq < o.Uniq
}

func (s SeqNum) String() string {
	if s.Uniq == AnyUniq {
		return fmt.Sprintf("%s:*", s.Addr)
	}
	return fmt.Sprintf("%s:%d", s.Addr, s.Uniq)
}
