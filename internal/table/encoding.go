package table

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encodingAliases maps names used by Windows tools to WHATWG labels.
var encodingAliases = map[string]string{
	"ansi":   "windows-1252",
	"cp1252": "windows-1252",
	"utf8":   "utf-8",
	"":       "utf-8",
}

// LookupEncoding resolves a charset name such as "utf-8", "windows-1252" or "ANSI".
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := encodingAliases[key]; ok {
		key = alias
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, eris.Wrapf(err, "table: unsupported encoding %q", name)
	}
	return enc, nil
}

// NewDecodingReader decodes r from the named charset into UTF-8. A leading
// UTF-8 or UTF-16 byte order mark overrides the configured charset.
func NewDecodingReader(r io.Reader, charset string) (io.Reader, error) {
	enc, err := LookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// NewEncodingWriter encodes UTF-8 written to the returned writer into the named
// charset. Runes the charset cannot represent are replaced.
func NewEncodingWriter(w io.Writer, charset string) (io.WriteCloser, error) {
	enc, err := LookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder())), nil
}
