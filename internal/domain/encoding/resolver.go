// Package encoding resolves the character encoding of raw statement files
// and decodes them to UTF-8 text. Detection is statistical and best-effort;
// ambiguity never blocks an import, it degrades to a lossy UTF-8 decode.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Result is the decoded text plus the encoding it was decoded from,
// recorded for diagnostics.
type Result struct {
	Text     string
	Encoding string
	Lossy    bool
}

// Resolver detects and decodes statement file encodings.
type Resolver struct {
	detector *chardet.Detector
}

func NewResolver() *Resolver {
	return &Resolver{detector: chardet.NewTextDetector()}
}

// supported maps normalized charset names to their decoders. Anything the
// detector reports outside this set is treated as UTF-8.
var supported = map[string]encoding.Encoding{
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

// Decode detects the most probable encoding of data and returns UTF-8 text.
// It never fails: undetectable or undecodable input falls back to a lossy
// UTF-8 interpretation with invalid bytes replaced.
func (r *Resolver) Decode(data []byte) Result {
	data = stripBOM(data)
	name := r.detect(data)

	if enc, ok := supported[name]; ok {
		decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
		if err == nil && utf8.Valid(decoded) {
			return Result{Text: string(decoded), Encoding: name}
		}
	}

	if utf8.Valid(data) {
		return Result{Text: string(data), Encoding: "utf-8"}
	}
	return Result{
		Text:     strings.ToValidUTF8(string(data), string(utf8.RuneError)),
		Encoding: "utf-8",
		Lossy:    true,
	}
}

func (r *Resolver) detect(data []byte) string {
	if len(data) == 0 {
		return "utf-8"
	}
	best, err := r.detector.DetectBest(data)
	if err != nil || best == nil {
		return "utf-8"
	}
	return strings.ToLower(best.Charset)
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
