package models

// FileResult is the outcome of processing a single original file.
type FileResult struct {
	FileName string
	Err      error
}

func (r FileResult) Ok() bool {
	return r.Err == nil
}
