package files

// UploadRequest is the body of POST /upload.
type UploadRequest struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// RequestBody is the wire form of an upload. Nil fields were absent or null.
type RequestBody struct {
	Path     *string `json:"path"`
	Contents *string `json:"contents"`
}

// Request checks that both fields were sent and returns the upload request.
func (b RequestBody) Request() (UploadRequest, error) {
	switch {
	case b.Path == nil:
		return UploadRequest{}, &MissingFieldError{Field: "path"}
	case b.Contents == nil:
		return UploadRequest{}, &MissingFieldError{Field: "contents"}
	}
	return UploadRequest{Path: *b.Path, Contents: *b.Contents}, nil
}

// UploadResult describes a completed upload.
type UploadResult struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}
