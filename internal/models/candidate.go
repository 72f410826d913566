package models

// Candidate is a scraped vendor result normalized for matching
type Candidate struct {
	Link    string `json:"link"`
	Name    string `json:"name"`
	Price   string `json:"price,omitempty"`
	Address string `json:"address,omitempty"`
}

// DedupeByLink keeps the first candidate seen for each link.
// Candidates without a link are kept as-is.
func DedupeByLink(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Link != "" {
			if _, dup := seen[c.Link]; dup {
				continue
			}
			seen[c.Link] = struct{}{}
		}
		out = append(out, c)
	}
	return out
}
