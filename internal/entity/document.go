package entity

import (
	"path/filepath"

	"github.com/receiptscan/receiptscan/constants"
	"github.com/receiptscan/receiptscan/internal/common"
)

// RawDocument is one uploaded document: the bytes, the declared filename,
// and the file kind inferred from the filename suffix. It is immutable for
// the duration of an extraction call.
type RawDocument struct {
	Filename string
	Data     []byte
	Format   constants.FileFormat
}

// NewRawDocument validates the entry contract (name present, size within the
// upload ceiling) and detects the file kind. An unrecognized extension does
// not fail here; the pipeline reports it as a processing failure instead.
func NewRawDocument(filename string, data []byte) (*RawDocument, error) {
	if err := common.CheckFilename(filename); err != nil {
		return nil, err
	}
	if err := common.CheckSize(len(data)); err != nil {
		return nil, err
	}
	return &RawDocument{
		Filename: filename,
		Data:     data,
		Format:   constants.MapExtToFormat(filepath.Ext(filename)),
	}, nil
}

// Ext returns the normalized filename extension.
func (d *RawDocument) Ext() string {
	return constants.NormalizeExt(filepath.Ext(d.Filename))
}
