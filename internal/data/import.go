package data

const DepartmentExternal string = "Remote/External"

// ExternalPerson is the subset of the placeholder api's user document
// that's imported.
type ExternalPerson struct {
	Id    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ImportFailure string

const (
	ImportFailureNone              ImportFailure = ""
	ImportFailureFetchFailed       ImportFailure = "fetch_failed"
	ImportFailureMalformedResponse ImportFailure = "malformed_response"
	ImportFailureMissingFields     ImportFailure = "missing_fields"
	ImportFailureInsertFailed      ImportFailure = "insert_failed"
	ImportFailureMutationDisabled  ImportFailure = "mutation_disabled"
)

// ImportResult holds either the imported employee or the reason the
// import failed; a failed import never inserts anything.
type ImportResult struct {
	Employee *Employee     `json:"employee,omitempty"`
	Failure  ImportFailure `json:"failure,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (i *ImportResult) Succeeded() bool {
	return i.Failure == ImportFailureNone && i.Employee != nil
}

func ImportFailed(failure ImportFailure, err error) *ImportResult {
	result := &ImportResult{Failure: failure}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}
