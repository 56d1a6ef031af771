package types

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/gotd/td/tg"
)

// File is the transient per-request handle for an archived document: the
// upstream file location (which expires minutes after issuance) plus the
// metadata needed to stream it. Never persisted — only cached briefly.
type File struct {
	Location tg.InputFileLocationClass
	FileSize int64
	FileName string
	MimeType string
	ID       int64
	DCID     int
}

// fileGob carries the gob form of File. The Location interface cannot be
// encoded directly, so its concrete document location is flattened.
type fileGob struct {
	LocationData []byte
	FileSize     int64
	FileName     string
	MimeType     string
	ID           int64
	DCID         int
}

// GobEncode implements gob.GobEncoder.
func (f *File) GobEncode() ([]byte, error) {
	loc, ok := f.Location.(*tg.InputDocumentFileLocation)
	if !ok {
		return nil, fmt.Errorf("unsupported location type: %T", f.Location)
	}
	var locBuf bytes.Buffer
	if err := gob.NewEncoder(&locBuf).Encode(loc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(fileGob{
		LocationData: locBuf.Bytes(),
		FileSize:     f.FileSize,
		FileName:     f.FileName,
		MimeType:     f.MimeType,
		ID:           f.ID,
		DCID:         f.DCID,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *File) GobDecode(data []byte) error {
	var fg fileGob
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&fg); err != nil {
		return err
	}
	var loc tg.InputDocumentFileLocation
	if err := gob.NewDecoder(bytes.NewBuffer(fg.LocationData)).Decode(&loc); err != nil {
		return err
	}
	f.Location = &loc
	f.FileSize = fg.FileSize
	f.FileName = fg.FileName
	f.MimeType = fg.MimeType
	f.ID = fg.ID
	f.DCID = fg.DCID
	return nil
}

type RootResponse struct {
	Message string `json:"message"`
	Ok      bool   `json:"ok"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
