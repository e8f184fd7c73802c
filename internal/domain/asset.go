package domain

// Asset is an uploaded reference image addressed by id, with the storage key
// of its backing object.
type Asset struct {
	ID   string
	Path string
}
