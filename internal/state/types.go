package state

import "time"

// WatchState represents the persisted state of watch mode processing
type WatchState struct {
	// LastScan is the timestamp of the last completed inbox scan
	LastScan time.Time `json:"last_scan"`

	// Files is a map of absolute input path to its conversion state
	Files map[string]*FileState `json:"files"`

	// Version is the state file format version
	Version int `json:"version"`
}

// FileState represents the conversion state for a single input document
type FileState struct {
	// Path is the absolute path of the input document
	Path string `json:"path"`

	// Hash is the SHA256 hash of the input content for change detection
	Hash string `json:"hash"`

	// Size is the input size in bytes
	Size int64 `json:"size"`

	// OutputPath is where the searchable document was written
	OutputPath string `json:"output_path,omitempty"`

	// JobID is the identifier of the last conversion attempt
	JobID string `json:"job_id,omitempty"`

	// PageCount is the number of pages in the input
	PageCount int `json:"page_count"`

	// Status is the status of the last conversion
	Status ConversionStatus `json:"status"`

	// ConvertedAt is when the last successful conversion finished
	ConvertedAt time.Time `json:"converted_at,omitempty"`

	// Error contains any error message from the last attempt
	Error string `json:"error,omitempty"`

	// RetryCount is the number of failed attempts since the last success
	RetryCount int `json:"retry_count"`
}

// ConversionStatus represents the status of document conversion
type ConversionStatus string

const (
	// ConversionStatusPending indicates conversion has not been attempted
	ConversionStatusPending ConversionStatus = "pending"

	// ConversionStatusInProgress indicates conversion is currently running
	ConversionStatusInProgress ConversionStatus = "in_progress"

	// ConversionStatusCompleted indicates conversion completed successfully
	ConversionStatusCompleted ConversionStatus = "completed"

	// ConversionStatusFailed indicates conversion failed
	ConversionStatusFailed ConversionStatus = "failed"

	// ConversionStatusSkipped indicates the input was rejected before conversion
	// (e.g. not a PDF, too many pages)
	ConversionStatusSkipped ConversionStatus = "skipped"
)

// StateFileVersion is the current version of the state file format
const StateFileVersion = 1

// MaxRetries is the number of failed attempts after which an unchanged file is left alone
const MaxRetries = 3

// NewWatchState creates a new empty WatchState
func NewWatchState() *WatchState {
	return &WatchState{
		Files:   make(map[string]*FileState),
		Version: StateFileVersion,
	}
}

// NewFileState creates a new pending FileState for an input document
func NewFileState(path, hash string, size int64) *FileState {
	return &FileState{
		Path:   path,
		Hash:   hash,
		Size:   size,
		Status: ConversionStatusPending,
	}
}

// NeedsConversion returns true if the input at hash should be (re)converted.
// A changed hash always needs conversion. An unchanged file needs it only
// after a failure that has not exhausted its retries.
func (fs *FileState) NeedsConversion(hash string) bool {
	if fs.Hash != hash {
		return true
	}

	switch fs.Status {
	case ConversionStatusCompleted, ConversionStatusSkipped:
		return false
	case ConversionStatusFailed:
		return fs.RetryCount < MaxRetries
	default:
		// pending or interrupted while in progress
		return true
	}
}

// MarkInProgress records the start of a conversion attempt for content hash
func (fs *FileState) MarkInProgress(hash, jobID string) {
	if fs.Hash != hash {
		fs.RetryCount = 0
	}
	fs.Hash = hash
	fs.JobID = jobID
	fs.Status = ConversionStatusInProgress
}

// MarkConverted updates the file state after a successful conversion
func (fs *FileState) MarkConverted(outputPath string, pageCount int) {
	fs.OutputPath = outputPath
	fs.PageCount = pageCount
	fs.Status = ConversionStatusCompleted
	fs.ConvertedAt = time.Now()
	fs.Error = ""
	fs.RetryCount = 0
}

// MarkError records a failed conversion attempt
func (fs *FileState) MarkError(err error) {
	fs.Status = ConversionStatusFailed
	fs.Error = err.Error()
	fs.RetryCount++
}

// MarkSkipped records that the input was rejected before conversion
func (fs *FileState) MarkSkipped(reason error) {
	fs.Status = ConversionStatusSkipped
	fs.Error = reason.Error()
}

// GetFile returns the FileState for a path, or nil if not found
func (ws *WatchState) GetFile(path string) *FileState {
	return ws.Files[path]
}

// AddFile adds or updates a file in the watch state
func (ws *WatchState) AddFile(file *FileState) {
	ws.Files[file.Path] = file
}

// RemoveFile removes a file from the watch state
func (ws *WatchState) RemoveFile(path string) {
	delete(ws.Files, path)
}

// UpdateLastScan updates the last scan timestamp
func (ws *WatchState) UpdateLastScan() {
	ws.LastScan = time.Now()
}
