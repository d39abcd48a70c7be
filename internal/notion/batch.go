package notion

// MaxBlocksPerRequest is Notion's ceiling on children per create or append call.
const MaxBlocksPerRequest = 100

// Batches splits blocks into consecutive groups of at most size, preserving order.
func Batches(blocks []Block, size int) [][]Block {
	if size <= 0 {
		size = MaxBlocksPerRequest
	}
	var out [][]Block
	for start := 0; start < len(blocks); start += size {
		end := min(start+size, len(blocks))
		out = append(out, blocks[start:end])
	}
	return out
}
