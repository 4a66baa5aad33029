package model

// IntegrityReport lists fixture files that are missing, suspiciously small,
// or content-tampered. Computed fresh on every verification; never cached.
type IntegrityReport struct {
	MissingFiles       []Path `json:"missing_files,omitempty"`
	UndersizedFiles    []Path `json:"undersized_files,omitempty"`
	ChecksumMismatches []Path `json:"checksum_mismatches,omitempty"`
}

// Clean reports whether the fixture inventory passed every check.
func (r IntegrityReport) Clean() bool {
	return len(r.MissingFiles) == 0 &&
		len(r.UndersizedFiles) == 0 &&
		len(r.ChecksumMismatches) == 0
}

// FindingCount returns the total number of findings across all classes.
func (r IntegrityReport) FindingCount() int {
	return len(r.MissingFiles) + len(r.UndersizedFiles) + len(r.ChecksumMismatches)
}
