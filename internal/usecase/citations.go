package usecase

import "virtualta/internal/domain"

// CollectCitations gathers source and image links from chunks in rank
// order, keeping the first occurrence of each. Both slices are non-nil.
func CollectCitations(chunks []domain.ScoredChunk) (links, images []string) {
	links = []string{}
	images = []string{}
	seenLinks := make(map[string]bool)
	seenImages := make(map[string]bool)

	for _, c := range chunks {
		meta := c.Chunk.Metadata
		if meta.Source != "" && !seenLinks[meta.Source] {
			seenLinks[meta.Source] = true
			links = append(links, meta.Source)
		}
		if meta.Image != "" && !seenImages[meta.Image] {
			seenImages[meta.Image] = true
			images = append(images, meta.Image)
		}
	}
	return links, images
}
