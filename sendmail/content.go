package sendmail

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/docker/go-units"
)

// MaxFileSize caps every file read at construction time (body, secret and
// attachment files).
const MaxFileSize int64 = 25 * units.MiB

// AttachmentContentType is the content type given to every attachment.
// No per-file sniffing is done.
const AttachmentContentType = "text/plain"

// Attachment is a file materialized in memory.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Content is the subject, body and attachments of a message.
type Content struct {
	subject     string
	body        string
	isHTML      bool
	attachments []Attachment
}

// PlainContent returns text/plain content without attachments.
func PlainContent(subject, body string) *Content {
	return &Content{subject: subject, body: body}
}

// NewContent reads every attachment path into memory. The first unreadable
// path fails the whole call.
func NewContent(subject, body string, isHTML bool, attachmentPaths ...string) (*Content, error) {
	attachments, err := loadAttachments(attachmentPaths)
	if err != nil {
		return nil, err
	}
	return &Content{
		subject:     subject,
		body:        body,
		isHTML:      isHTML,
		attachments: attachments,
	}, nil
}

// NewContentFromBodyFile is NewContent with the body read from bodyPath as
// UTF-8 text. The file contents are kept byte for byte.
func NewContentFromBodyFile(subject, bodyPath string, isHTML bool, attachmentPaths ...string) (*Content, error) {
	raw, err := readFileLimited(bodyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyFileUnreadable, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: %s: not valid UTF-8", ErrBodyFileUnreadable, bodyPath)
	}
	return NewContent(subject, string(raw), isHTML, attachmentPaths...)
}

// LoadAttachment reads path into an Attachment named after its final path
// segment.
func LoadAttachment(path string) (Attachment, error) {
	raw, err := readFileLimited(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %w", ErrAttachmentUnreadable, err)
	}
	return Attachment{
		Filename:    filepath.Base(path),
		ContentType: AttachmentContentType,
		Content:     raw,
	}, nil
}

func loadAttachments(paths []string) ([]Attachment, error) {
	attachments := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		att, err := LoadAttachment(p)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

func (c *Content) Subject() string {
	return c.subject
}

func (c *Content) Body() string {
	return c.body
}

func (c *Content) IsHTML() bool {
	return c.isHTML
}

// Attachments returns a copy of the attachment list in the order given.
func (c *Content) Attachments() []Attachment {
	return slices.Clone(c.attachments)
}

// BodyContentType is the MIME type of the text part.
func (c *Content) BodyContentType() string {
	if c.isHTML {
		return "text/html"
	}
	return "text/plain"
}

// readFileLimited reads at most MaxFileSize bytes from path.
func readFileLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%s)", path, errFileTooLarge, units.BytesSize(float64(MaxFileSize)))
	}
	return raw, nil
}
