package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/cloudwego/base64x"
	"github.com/gabriel-vasile/mimetype"

	"lernguide/internal/models"
)

// File is a readable file-like handle supplied by an upload or a restore.
type File interface {
	Name() string
	Type() string
	LastModified() int64
	Open() (io.ReadCloser, error)
}

// ReadError reports that a file's bytes could not be read.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// DecodeError reports malformed base64 in a payload.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Read loads the whole content of f into a document. An empty MIME type is
// filled in by content sniffing.
func Read(ctx context.Context, f File) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Name: f.Name(), Err: err}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &ReadError{Name: f.Name(), Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ReadError{Name: f.Name(), Err: err}
	}
	mimeType := f.Type()
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	return &models.Document{
		Name:         f.Name(),
		MimeType:     mimeType,
		LastModified: f.LastModified(),
		Data:         data,
	}, nil
}

// Encode reads the whole content of f and returns its portable form.
func Encode(ctx context.Context, f File) (models.BinaryPayload, error) {
	doc, err := Read(ctx, f)
	if err != nil {
		return models.BinaryPayload{}, err
	}
	return EncodeDocument(doc), nil
}

// EncodeBytes returns standard padded base64 without a data-URL prefix.
func EncodeBytes(data []byte) string {
	return base64x.StdEncoding.EncodeToString(data)
}

// EncodeDocument converts an in-memory document; it cannot fail.
func EncodeDocument(doc *models.Document) models.BinaryPayload {
	return models.BinaryPayload{
		Name:                  doc.Name,
		MimeType:              doc.MimeType,
		LastModifiedTimestamp: doc.LastModified,
		Data:                  EncodeBytes(doc.Data),
	}
}

// ErrNonCanonical marks base64 input that decodes but would not encode back to itself.
var ErrNonCanonical = errors.New("base64 data is not canonically padded")

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// Decode rebuilds a document with the exact decoded bytes. Input must be
// padded standard base64; line breaks are ignored.
func Decode(b64, name, mimeType string, lastModified int64) (*models.Document, error) {
	data, err := base64x.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	if EncodeBytes(data) != lineBreaks.Replace(b64) {
		return nil, &DecodeError{Name: name, Err: ErrNonCanonical}
	}
	return &models.Document{
		Name:         name,
		MimeType:     mimeType,
		LastModified: lastModified,
		Data:         data,
	}, nil
}

func DecodePayload(p models.BinaryPayload) (*models.Document, error) {
	return Decode(p.Data, p.Name, p.MimeType, p.LastModifiedTimestamp)
}

// DetectMIME sniffs the media type of data.
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

type multipartFile struct {
	header       *multipart.FileHeader
	lastModified int64
}

// FromMultipart adapts an uploaded form file. lastModified is epoch millis as
// reported by the client.
func FromMultipart(h *multipart.FileHeader, lastModified int64) File {
	return &multipartFile{header: h, lastModified: lastModified}
}

func (f *multipartFile) Name() string                 { return f.header.Filename }
func (f *multipartFile) Type() string                 { return f.header.Header.Get("Content-Type") }
func (f *multipartFile) LastModified() int64          { return f.lastModified }
func (f *multipartFile) Open() (io.ReadCloser, error) { return f.header.Open() }
