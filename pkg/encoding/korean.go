// Package encoding decodes legacy archive entry names and normalizes
// resource paths into lookup keys.
package encoding

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// EUCKRToUTF8 converts EUC-KR encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func EUCKRToUTF8(data []byte) string {
	result, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// DecodeEntryName returns an archive entry name as UTF-8. Names flagged as
// UTF-8 or already valid UTF-8 pass through; anything else is read as EUC-KR,
// the code page most legacy Korean zip tools write.
func DecodeEntryName(name string, flaggedUTF8 bool) string {
	if flaggedUTF8 || utf8.ValidString(name) {
		return name
	}
	return EUCKRToUTF8([]byte(name))
}
