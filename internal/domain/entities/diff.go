package entities

// DiffResult compares the file trees of two released artifacts.
// All file lists are sorted relative paths.
type DiffResult struct {
	Available  bool     `json:"available"`
	Changed    []string `json:"changed,omitempty"`
	Unchanged  []string `json:"unchanged,omitempty"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
	TotalFiles int      `json:"total_files"`
	Reason     string   `json:"reason,omitempty"`
}

// DiffUnavailable builds a result explaining why no diff exists
func DiffUnavailable(reason string) DiffResult {
	return DiffResult{Available: false, Reason: reason}
}

// Modified returns changed, added, then removed files, the candidates for relevance matching.
// A fix that deletes the vulnerable module is still a change to it.
func (d DiffResult) Modified() []string {
	out := make([]string, 0, len(d.Changed)+len(d.Added)+len(d.Removed))
	out = append(out, d.Changed...)
	out = append(out, d.Added...)
	return append(out, d.Removed...)
}
