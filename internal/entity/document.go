package entity

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/fingerprint"
)

// Document is an uploaded invoice file. Content never changes after upload;
// only the display name does.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Content    []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UntitledName is the display name of a document uploaded without any name.
const UntitledName = "untitled"

// NewDocument copies content and derives the document ID from it. Filename is the
// source file name and decides the format; displayName is what the ledger shows and
// defaults to the file name.
func NewDocument(filename, displayName string, content []byte, now time.Time) Document {
	buf := make([]byte, len(content))
	copy(buf, content)
	file := strings.TrimSpace(filepath.Base(strings.TrimSpace(filename)))
	if file == "." || file == string(filepath.Separator) {
		file = ""
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = file
	}
	if name == "" {
		name = UntitledName
	}
	return Document{
		ID:         fingerprint.ContentID(buf),
		Name:       name,
		Filename:   file,
		Content:    buf,
		UploadedAt: now,
	}
}

// Ext is the supported extension of the document, without the dot. The file name wins;
// when it has no supported extension the content is sniffed. "" means the format is
// not one we can read.
func (d Document) Ext() string {
	if ext := constants.NormalizeExt(filepath.Ext(d.Filename)); constants.IsAllowedExt(ext) {
		return ext
	}
	if len(d.Content) == 0 {
		return ""
	}
	if ext := constants.NormalizeExt(mimetype.Detect(d.Content).Extension()); constants.IsAllowedExt(ext) {
		return ext
	}
	return ""
}

// SourceName is a file name that carries Ext, for engines that dispatch on it.
func (d Document) SourceName() string {
	ext := d.Ext()
	base := d.Filename
	if base == "" {
		base = "document"
	}
	if ext == "" || constants.NormalizeExt(filepath.Ext(base)) == ext {
		return base
	}
	return base + "." + ext
}

// DocumentInfo is a Document without its bytes.
type DocumentInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	MimeType   string    `json:"mime_type"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (d Document) Info() DocumentInfo {
	return DocumentInfo{
		ID:         d.ID,
		Name:       d.Name,
		Filename:   d.Filename,
		Format:     constants.MapExtToFormat(d.Ext()),
		MimeType:   mimetype.Detect(d.Content).String(),
		Size:       len(d.Content),
		UploadedAt: d.UploadedAt,
	}
}

// ExtractedText is the OCR output for one document.
// Ran=false means extraction has not run; Ran=true with empty Text means it ran and found nothing.
type ExtractedText struct {
	Ran        bool          `json:"ran"`
	Text       string        `json:"text"`
	Pages      int           `json:"pages,omitempty"`
	Method     string        `json:"method,omitempty"`
	Confidence float32       `json:"confidence,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Empty reports whether there is no usable text, whether or not extraction ran.
func (t ExtractedText) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

func (t ExtractedText) Clone() ExtractedText {
	out := t
	if t.Warnings != nil {
		out.Warnings = append([]string(nil), t.Warnings...)
	}
	return out
}
