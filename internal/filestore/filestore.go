package filestore

import (
	"io"

	"github.com/h2non/filetype"
)

// ObjectStore accepts a binary payload and a resource-type hint and returns
// a stable public URL for the uploaded blob. Upload is synchronous from the
// caller's perspective.
type ObjectStore interface {
	Upload(r io.Reader, resourceType string) (url string, err error)
}

// ResourceType sniffs the payload head and returns the hint passed to the
// object store. Audio is uploaded as "video" (the hosting service has no
// native audio type); anything unrecognized falls back to "auto".
func ResourceType(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "auto"
	}
	switch kind.MIME.Type {
	case "audio", "video":
		return "video"
	case "image":
		return "image"
	default:
		return "auto"
	}
}

// Extension returns the sniffed file extension including the dot, or empty
// when the payload is unrecognized.
func Extension(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return "." + kind.Extension
}
