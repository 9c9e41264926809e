package exfat

import (
	"encoding/binary"
	"unicode/utf16"
)

// UnicodeFromAscii returns Unicode from raw utf16 data.
func UnicodeFromAscii(raw []byte, unicodeCharCount int) string {
	// `VolumeLabel` is a Unicode-encoded string and the character-count
	// corresponds to the number of Unicode characters. The character-count may
	// still include trailing NULs, sowe intentional skip over those.

	decodedString := make([]rune, 0)
	for i := 0; i < unicodeCharCount; i++ {
		wchar1 := uint16(raw[i*2+1])
		wchar2 := uint16(raw[i*2])

		bytes := []uint16{wchar1<<8 | wchar2}
		runes := utf16.Decode(bytes)

		if runes[0] == 0 {
			continue
		}

		decodedString = append(decodedString, runes...)
	}

	return string(decodedString)
}

// utf16Encode encodes a Go string as UTF-16LE code units.
func utf16Encode(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// utf16Decode decodes UTF-16LE code units back into a Go string.
func utf16Decode(units []uint16) string {
	return string(utf16.Decode(units))
}

// utf16DecodeStrict decodes little-endian UTF-16 bytes, rejecting unpaired
// surrogates instead of silently substituting U+FFFD. Used by the file-set
// parser (§4.12), where a malformed name must surface as InvalidFileName
// rather than be decoded best-effort.
func utf16DecodeStrict(raw []byte) (string, bool) {
	if len(raw)%2 != 0 {
		return "", false
	}

	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}

	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]

		switch {
		case u >= 0xd800 && u <= 0xdbff:
			if i+1 >= len(units) {
				return "", false
			}

			u2 := units[i+1]
			if u2 < 0xdc00 || u2 > 0xdfff {
				return "", false
			}

			r := utf16.DecodeRune(rune(u), rune(u2))
			if r == 0xfffd {
				return "", false
			}

			runes = append(runes, r)
			i++
		case u >= 0xdc00 && u <= 0xdfff:
			return "", false
		default:
			runes = append(runes, rune(u))
		}
	}

	return string(runes), true
}
