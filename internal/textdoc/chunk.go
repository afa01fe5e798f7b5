package textdoc

// SplitChunks partitions a page-marked body into contiguous chunks of at
// most pagesPerChunk markers each, for correction calls with an output
// size ceiling. Boundaries fall exactly at marker starts: chunk 1 begins
// at the body start, every later chunk begins at its first marker, and
// each chunk ends where the next begins. Every byte of the body belongs
// to exactly one chunk, so plain concatenation of the returned slices
// reproduces the body.
func SplitChunks(body string, pagesPerChunk int) []string {
	if pagesPerChunk < 1 {
		pagesPerChunk = 1
	}
	locs := markerRe.FindAllStringIndex(body, -1)
	if len(locs) <= pagesPerChunk {
		return []string{body}
	}

	var chunks []string
	for i := 0; i < len(locs); i += pagesPerChunk {
		start := 0
		if i > 0 {
			start = locs[i][0]
		}
		end := len(body)
		if i+pagesPerChunk < len(locs) {
			end = locs[i+pagesPerChunk][0]
		}
		chunks = append(chunks, body[start:end])
	}
	return chunks
}
