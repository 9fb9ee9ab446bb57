// Package block implements the control-flow structurer (spec section
// 4.4): loop discovery, goto selection over a traced DAG, and the
// iterative CollapseStructure rule set that folds a basic-block graph
// into the hierarchical block variants of section 3.
//
// Block variants are a tagged record with a Kind discriminant, not a
// class hierarchy (spec section 9), generalizing internal/pcode's
// OpInfo data-table idiom from opcodes to structured-block shapes.
package block

import "github.com/Urethramancer/pcodec/internal/ssa"

// Kind discriminates a FlowBlock's structural role.
type Kind int

const (
	KindBasic Kind = iota
	KindList
	KindCondition
	KindIf
	KindIfElse
	KindWhileDo
	KindDoWhile
	KindInfLoop
	KindSwitch
	KindGoto
)

func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindList:
		return "list"
	case KindCondition:
		return "condition"
	case KindIf:
		return "if"
	case KindIfElse:
		return "if-else"
	case KindWhileDo:
		return "while-do"
	case KindDoWhile:
		return "do-while"
	case KindInfLoop:
		return "infinite-loop"
	case KindSwitch:
		return "switch"
	case KindGoto:
		return "goto"
	default:
		return "unknown"
	}
}

// CondOp names the boolean combinator of a KindCondition block.
type CondOp int

const (
	CondAnd CondOp = iota
	CondOr
)

// Edge is one directed control-flow edge between FlowBlocks.
type Edge struct {
	From, To *FlowBlock
	IsBack   bool // a loop back-edge, identified before structuring begins
	IsGoto   bool // an unstructured edge CollapseStructure left behind
	IsExit   bool // the chosen exit edge of a loop body or switch
}

// FlowBlock is one node of the structured graph: either a basic block
// wrapping an ssa.BasicBlock, or a composite produced by collapsing
// a matched pattern of children (spec section 4.4's block variants).
type FlowBlock struct {
	id       int
	Kind     Kind
	Basic    *ssa.BasicBlock
	Children []*FlowBlock
	Out      []*Edge
	CondOp   CondOp
	Negate   []bool
}

// ID returns the block's stable identity, assigned at creation.
func (b *FlowBlock) ID() int { return b.id }

// Graph is the mutable working set CollapseStructure folds down.
type Graph struct {
	Blocks []*FlowBlock
	nextID int
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph { return &Graph{} }

func (g *Graph) newBlock(kind Kind) *FlowBlock {
	g.nextID++
	return &FlowBlock{id: g.nextID, Kind: kind}
}

// AddBasic wraps one ssa.BasicBlock as a KindBasic FlowBlock.
func (g *Graph) AddBasic(b *ssa.BasicBlock) *FlowBlock {
	fb := g.newBlock(KindBasic)
	fb.Basic = b
	g.Blocks = append(g.Blocks, fb)
	return fb
}

// AddEdge records a control-flow edge from->to.
func (g *Graph) AddEdge(from, to *FlowBlock, isBack bool) *Edge {
	e := &Edge{From: from, To: to, IsBack: isBack}
	from.Out = append(from.Out, e)
	return e
}

// nonGotoOutEdges returns b's out edges that are not marked goto, the
// edges CollapseStructure's rules are allowed to fold on.
func nonGotoOutEdges(b *FlowBlock) []*Edge {
	var out []*Edge
	for _, e := range b.Out {
		if !e.IsGoto {
			out = append(out, e)
		}
	}
	return out
}

// inEdges returns every active block's non-goto edge that targets b.
func inEdges(g *Graph, b *FlowBlock) []*Edge {
	var out []*Edge
	for _, blk := range g.Blocks {
		for _, e := range blk.Out {
			if e.To == b && !e.IsGoto {
				out = append(out, e)
			}
		}
	}
	return out
}

// predecessorsOf returns the source blocks of b's non-goto in edges.
func predecessorsOf(g *Graph, b *FlowBlock) []*FlowBlock {
	var out []*FlowBlock
	for _, e := range inEdges(g, b) {
		out = append(out, e.From)
	}
	return out
}

// flattenMembers returns b's own Children if it is already a KindList
// (so ruleBlockCat never nests a list inside a list), else []{b}.
func flattenMembers(b *FlowBlock) []*FlowBlock {
	if b.Kind == KindList {
		return b.Children
	}
	return []*FlowBlock{b}
}

// replace removes members from g's active block list, installs
// composite in their place, rewires outEdges as composite's own
// out-edges, and redirects any surviving edge that targeted entry
// (the only member blocks outside code is allowed to reference) to
// point at composite instead.
func replace(g *Graph, members []*FlowBlock, composite *FlowBlock, entry *FlowBlock, outEdges []*Edge) {
	memberSet := make(map[*FlowBlock]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	for _, e := range outEdges {
		e.From = composite
	}
	composite.Out = outEdges

	for _, blk := range g.Blocks {
		if memberSet[blk] {
			continue
		}
		for _, e := range blk.Out {
			if e.To == entry {
				e.To = composite
			}
		}
	}

	kept := make([]*FlowBlock, 0, len(g.Blocks))
	for _, blk := range g.Blocks {
		if !memberSet[blk] {
			kept = append(kept, blk)
		}
	}
	kept = append(kept, composite)
	g.Blocks = kept
}

// Isolated reports whether b has no remaining in or out edges (spec
// section 8, the CollapseStructure termination invariant).
func Isolated(g *Graph, b *FlowBlock) bool {
	return len(b.Out) == 0 && len(inEdges(g, b)) == 0
}
