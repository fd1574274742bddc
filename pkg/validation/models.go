package validation

// FileState is the per-file validity verdict for one archive member
// (or expected-but-missing member).
type FileState struct {
	FileName string   `json:"file_name"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
}

// MediaState aggregates file-level validity for the whole archive.
type MediaState struct {
	FileName   string      `json:"file_name"`
	Valid      bool        `json:"valid"`
	FileErrors []string    `json:"file_errors,omitempty"`
	FileStates []FileState `json:"file_states,omitempty"`
}

// RowError pinpoints a failed rule at row/column granularity.
type RowError struct {
	FileName string `json:"file_name"`
	Row      int    `json:"row"`
	Column   string `json:"column"`
	Error    string `json:"error"`
}

// CSVState carries per-row detail for worksheets that parsed but
// failed content rules.
type CSVState struct {
	RowErrors []RowError `json:"row_errors,omitempty"`
}

// Report is the full outcome of one validation pass. A false Valid is
// a normal operation result, not a system fault: the HTTP layer
// returns it with a success status.
type Report struct {
	Valid      bool       `json:"validation"`
	MediaState MediaState `json:"media_state"`
	CSVState   *CSVState  `json:"csv_state,omitempty"`
}
