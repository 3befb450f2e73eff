package models

// StagedFile represents uploaded audio written to disk for the lifetime of one request.
type StagedFile struct {
	Path string
	Size int64
}
