package exr

import "bytes"

// readerAtWrapper adapts a *bytes.Reader to io.ReaderAt for tests that
// exercise OpenReader against in-memory buffers.
type readerAtWrapper struct {
	*bytes.Reader
}
