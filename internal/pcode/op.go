package pcode

import "github.com/Urethramancer/pcodec/internal/address"

// OpFlag is a PcodeOp status/behavior bit.
type OpFlag uint32

const (
	OpFlagDead OpFlag = 1 << iota
	OpFlagMarker
	OpFlagBooleanFlip
	OpFlagCall
	OpFlagBranch
	OpFlagIndirect
)

// PcodeOp is a single three-address IR operation.
type PcodeOp struct {
	id      int
	Opcode  Opcode
	Parent  Block
	Seq     address.SeqNum
	Inputs  []*Varnode
	Output  *Varnode
	Flags   OpFlag

	createIndex int
}

func (op *PcodeOp) ID() int { return op.id }

func (op *PcodeOp) CreateIndex() int { return op.createIndex }

// IsAlive reports whether this op is still part of the live IR (not
// yet opDestroy'd).
func (op *PcodeOp) IsAlive() bool { return op.Flags&OpFlagDead == 0 }

// IsMarker reports whether this is a MULTIEQUAL or INDIRECT pseudo-op.
func (op *PcodeOp) IsMarker() bool { return op.Opcode.Info().IsMarker }

// InputSlot returns the slot index of vn among op's inputs, or -1.
func (op *PcodeOp) InputSlot(vn *Varnode) int {
	for i, in := range op.Inputs {
		if in == vn {
			return i
		}
	}
	return -1
}
