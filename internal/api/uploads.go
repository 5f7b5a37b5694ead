package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"lernguide/internal/codec"
	"lernguide/internal/models"
)

var allowedContentTypes = []string{
	"text/plain",
	"text/markdown",
	"application/pdf",
	"application/json",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/",
}

var errUnsupportedType = errors.New("unsupported file type")

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) parseMultipart(c *gin.Context) bool {
	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return false
	}
	return true
}

// readUpload turns an uploaded file into a document. The sniffed type must be
// on the allowlist; the declared type is kept when it is more specific.
func (h *Handler) readUpload(ctx context.Context, fh *multipart.FileHeader, lastModified string) (*models.Document, int, error) {
	if fh.Size > h.maxUpload {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%s: file too large", fh.Filename)
	}
	lm, err := strconv.ParseInt(lastModified, 10, 64)
	if err != nil || lm <= 0 {
		lm = h.now().UnixMilli()
	}
	doc, err := codec.Read(ctx, codec.FromMultipart(fh, lm))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	doc.Name = filepath.Base(doc.Name)

	sniffed := mimetype.Detect(doc.Data)
	if !isAllowedContentType(sniffed.String()) {
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("%s: %w", fh.Filename, errUnsupportedType)
	}
	declared := strings.TrimSpace(doc.MimeType)
	if declared == "" || declared == "application/octet-stream" || !isAllowedContentType(declared) {
		doc.MimeType = sniffed.String()
	}
	return doc, http.StatusOK, nil
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
