package models

// BinaryPayload is one uploaded document in portable form; Data is standard base64.
type BinaryPayload struct {
	Name                  string `json:"name" validate:"required"`
	MimeType              string `json:"mimeType"`
	LastModifiedTimestamp int64  `json:"lastModifiedTimestamp"`
	Data                  string `json:"data" validate:"omitempty,base64"`
}

// Document is a live, in-memory file handle.
type Document struct {
	Name         string
	MimeType     string
	LastModified int64 // epoch millis
	Data         []byte
}

// DocumentInfo is the metadata view of a Document returned to clients.
type DocumentInfo struct {
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	LastModified int64  `json:"lastModified"`
	Size         int    `json:"size"`
}

func (d *Document) Info() DocumentInfo {
	return DocumentInfo{
		Name:         d.Name,
		MimeType:     d.MimeType,
		LastModified: d.LastModified,
		Size:         len(d.Data),
	}
}
