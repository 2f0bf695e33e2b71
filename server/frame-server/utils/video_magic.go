package utils

import (
	"bytes"
	"net/http"
	"strings"
)

// videoSignatures maps container formats to the bytes their files start with
var videoSignatures = []struct {
	format string
	offset int
	magic  []byte
}{
	{"mkv", 0, []byte{0x1A, 0x45, 0xDF, 0xA3}}, // EBML header, also WebM
	{"flv", 0, []byte("FLV\x01")},
	{"wmv", 0, []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}},
	{"mpeg-ts", 0, []byte{0x47}},
	{"mpeg-ps", 0, []byte{0x00, 0x00, 0x01, 0xBA}},
}

// isoBrands are the ftyp brands of ISO base media files that carry video
var isoBrands = [][]byte{
	[]byte("isom"),
	[]byte("iso2"),
	[]byte("mp41"),
	[]byte("mp42"),
	[]byte("avc1"),
	[]byte("dash"),
	[]byte("mp4v"),
	[]byte("qt  "),
	[]byte("3gp4"),
	[]byte("3gp5"),
	[]byte("M4V "),
}

// DetectVideoFormat inspects the first bytes of a file and returns the container
// format if they look like a video
func DetectVideoFormat(head []byte) (string, bool) {
	if len(head) < 12 {
		return "", false
	}

	// ISO base media (mp4, mov, 3gp): box size, "ftyp", major brand
	if bytes.Equal(head[4:8], []byte("ftyp")) {
		brand := head[8:12]
		for _, valid := range isoBrands {
			if bytes.Equal(brand, valid) {
				if bytes.Equal(brand, []byte("qt  ")) {
					return "mov", true
				}
				return "mp4", true
			}
		}
		return "", false
	}

	if bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("AVI ")) {
		return "avi", true
	}

	for _, signature := range videoSignatures {
		end := signature.offset + len(signature.magic)
		if len(head) < end || !bytes.Equal(head[signature.offset:end], signature.magic) {
			continue
		}
		// a single sync byte is weak evidence, require the next packet to line up too
		if signature.format == "mpeg-ts" && (len(head) < 189 || head[188] != 0x47) {
			continue
		}
		return signature.format, true
	}

	return "", false
}

// IsImage reports whether the first bytes of a file look like an image
func IsImage(head []byte) bool {
	return strings.HasPrefix(http.DetectContentType(head), "image/")
}
