// Package content defines the typed clipboard payload and its derived
// classification. A Content is a closed union over the three payload kinds
// the watcher captures: plain text, PNG image bytes, and ordered file path
// lists. Equality for deduplication is by fingerprint, a SHA-256 over a
// variant-tagged encoding of the payload.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind discriminates the payload variant.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFiles Kind = "files"
)

// Category is the user-facing classification derived from a Content.
// It is never stored; always recomputed from the payload.
type Category string

const (
	CategoryAll   Category = "all" // filter wildcard, never a derived value
	CategoryText  Category = "text"
	CategoryLink  Category = "link"
	CategoryImage Category = "image"
	CategoryFile  Category = "file"
)

// Content is the tagged union of clipboard payloads. Exactly one payload
// field is meaningful, selected by Kind. Construct via Text, Image or Files.
type Content struct {
	Kind  Kind
	Text  string
	Image []byte
	Files []string
}

// Text returns a text Content.
func Text(s string) Content { return Content{Kind: KindText, Text: s} }

// Image returns an image Content holding PNG bytes.
func Image(png []byte) Content { return Content{Kind: KindImage, Image: png} }

// Files returns a file-list Content. Order is significant.
func Files(paths []string) Content { return Content{Kind: KindFiles, Files: paths} }

// Category derives the display category. Text beginning with an HTTP(S)
// scheme classifies as a link.
func (c Content) Category() Category {
	switch c.Kind {
	case KindImage:
		return CategoryImage
	case KindFiles:
		return CategoryFile
	default:
		t := strings.TrimSpace(c.Text)
		if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
			return CategoryLink
		}
		return CategoryText
	}
}

// Empty reports whether the payload carries nothing worth capturing:
// whitespace-only text, a zero-length image, or an empty path list.
func (c Content) Empty() bool {
	switch c.Kind {
	case KindText:
		return strings.TrimSpace(c.Text) == ""
	case KindImage:
		return len(c.Image) == 0
	case KindFiles:
		return len(c.Files) == 0
	}
	return true
}

// Fingerprint returns the hex SHA-256 of a variant-tagged encoding of the
// payload. The kind is mixed into the hash so that a text payload can never
// collide with a file path of the same bytes. File lists are hashed in
// order with a separator that cannot appear in a path.
func (c Content) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(c.Kind))
	h.Write([]byte{0})
	switch c.Kind {
	case KindText:
		h.Write([]byte(c.Text))
	case KindImage:
		h.Write(c.Image)
	case KindFiles:
		for _, p := range c.Files {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports payload equality: same kind and byte-for-byte identical
// payload. File lists compare element-wise in order.
func (c Content) Equal(o Content) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case KindText:
		return c.Text == o.Text
	case KindImage:
		return string(c.Image) == string(o.Image)
	case KindFiles:
		if len(c.Files) != len(o.Files) {
			return false
		}
		for i := range c.Files {
			if c.Files[i] != o.Files[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Preview returns a short human-readable representation used in logs.
func (c Content) Preview() string {
	switch c.Kind {
	case KindImage:
		return "image"
	case KindFiles:
		return strings.Join(c.Files, ", ")
	default:
		t := strings.TrimSpace(c.Text)
		// Truncate on rune boundaries so multi-byte text never yields
		// invalid UTF-8 in logs.
		if r := []rune(t); len(r) > 60 {
			return string(r[:60]) + "…"
		}
		return t
	}
}
