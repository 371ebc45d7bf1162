// Package sniffer identifies image formats from their leading bytes. The
// client supplied Content-Type is never trusted.
package sniffer

import (
	"bytes"
	"errors"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
)

// HeadSize is how many bytes Detect needs to make a decision.
const HeadSize = 512

var ErrUnknownFormat = errors.New("unknown image format")

type Result struct {
	Format Format
	MIME   string
}

// Raster is false for vector formats, which can carry scripts.
func (r Result) Raster() bool {
	return r.Format != FormatSVG
}

func (r Result) Ext() string {
	if r.Format == FormatJPEG {
		return "jpg"
	}
	return string(r.Format)
}

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
)

func Detect(data []byte) (Result, error) {
	head := data
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}

	switch {
	case bytes.HasPrefix(head, jpegMagic):
		return Result{Format: FormatJPEG, MIME: "image/jpeg"}, nil
	case bytes.HasPrefix(head, pngMagic):
		return Result{Format: FormatPNG, MIME: "image/png"}, nil
	case bytes.HasPrefix(head, []byte("GIF87a")), bytes.HasPrefix(head, []byte("GIF89a")):
		return Result{Format: FormatGIF, MIME: "image/gif"}, nil
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return Result{Format: FormatWEBP, MIME: "image/webp"}, nil
	case len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) && bytes.Contains(head[8:], []byte("avif")):
		return Result{Format: FormatAVIF, MIME: "image/avif"}, nil
	case isSVG(head):
		return Result{Format: FormatSVG, MIME: "image/svg+xml"}, nil
	}
	return Result{}, ErrUnknownFormat
}

func isSVG(head []byte) bool {
	trimmed := bytes.TrimSpace(head)
	return bytes.HasPrefix(trimmed, []byte("<svg")) ||
		(bytes.HasPrefix(trimmed, []byte("<?xml")) && bytes.Contains(trimmed, []byte("<svg")))
}
