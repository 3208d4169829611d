package prior

import "fmt"

// Block is a group of rows in the flat y vector, each row holding
// one value per item
type Block struct {
	Name string
	Rows uint32
}

// Layout maps the flat optimization vector to (block, row, item)
// coordinates and back. The same mapping serves flattening and
// unflattening so the two can never disagree.
type Layout struct {
	numItems uint32
	blocks   []Block
	offsets  []int
	size     int
}

func NewLayout(numItems uint32, blocks ...Block) *Layout {
	l := &Layout{
		numItems: numItems,
		blocks:   blocks,
		offsets:  make([]int, len(blocks)),
	}
	for b, blk := range blocks {
		l.offsets[b] = l.size
		l.size += int(blk.Rows) * int(numItems)
	}
	return l
}

// length of the flat vector
func (l *Layout) Len() int {
	return l.size
}

func (l *Layout) NumItems() uint32 {
	return l.numItems
}

func (l *Layout) Blocks() []Block {
	return l.blocks
}

// Index returns the flat position of (block, row, item)
func (l *Layout) Index(block int, row, item uint32) int {
	if block < 0 || block >= len(l.blocks) ||
		row >= l.blocks[block].Rows || item >= l.numItems {
		panic(fmt.Sprintf("prior: coordinate (%d, %d, %d) outside layout", block, row, item))
	}
	return l.offsets[block] + int(row)*int(l.numItems) + int(item)
}

// Locate is the inverse of Index
func (l *Layout) Locate(idx int) (int, uint32, uint32) {
	if idx < 0 || idx >= l.size {
		panic(fmt.Sprintf("prior: index %d outside layout of length %d", idx, l.size))
	}
	block := len(l.offsets) - 1
	for block > 0 && l.offsets[block] > idx {
		block -= 1
	}
	rel := idx - l.offsets[block]
	return block, uint32(rel / int(l.numItems)), uint32(rel % int(l.numItems))
}

// Describe names the y component at idx, e.g. "inner[2][17]"
func (l *Layout) Describe(idx int) string {
	block, row, item := l.Locate(idx)
	return fmt.Sprintf("%s[%d][%d]", l.blocks[block].Name, row, item)
}
