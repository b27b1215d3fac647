package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC blanks comments and trailing commas with spaces so decoder offsets
// still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	src := []byte(content)
	out := make([]byte, len(src))
	copy(out, src)

	type mode int
	const (
		code mode = iota
		str
		line
		block
	)

	m := code
	lastComma := -1
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch m {
		case str:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				m = code
			}
		case line:
			if ch == '\n' || ch == '\r' {
				m = code
				continue
			}
			out[i] = ' '
		case block:
			if ch == '*' && i+1 < len(src) && src[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				m = code
				continue
			}
			if ch != '\n' && ch != '\r' && ch != '\t' {
				out[i] = ' '
			}
		case code:
			switch {
			case ch == '"':
				m = str
				lastComma = -1
			case ch == '/' && i+1 < len(src) && src[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				m = line
			case ch == '/' && i+1 < len(src) && src[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				m = block
			case ch == ',':
				lastComma = i
			case ch == '}' || ch == ']':
				if lastComma >= 0 {
					out[lastComma] = ' '
				}
				lastComma = -1
			case isJSONWhitespace(ch):
			default:
				lastComma = -1
			}
		}
	}

	if m == block {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

// decodeStrict decodes exactly one JSON value, rejecting unknown fields.
func decodeStrict(normalized string, v any) error {
	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return locateDecodeError(normalized, decoder, err)
	}

	var extra json.RawMessage
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		line, col := offsetToLineCol(normalized, decoder.InputOffset())
		return fmt.Errorf("line %d column %d: multiple JSON values are not allowed", line, col)
	default:
		return locateDecodeError(normalized, decoder, err)
	}
}

func locateDecodeError(content string, decoder *json.Decoder, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		offset := decoder.InputOffset()
		if at := strings.Index(content, field); at >= 0 {
			offset = int64(at) + 1
		}
		line, col := offsetToLineCol(content, offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

// offsetToLineCol maps a 1-based decoder offset to a line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 1 {
		return 1, 1
	}
	limit := int(offset) - 1
	if limit > len(content) {
		limit = len(content)
	}

	prefix := []byte(content[:limit])
	line := bytes.Count(prefix, []byte{'\n'}) + 1
	col := limit - bytes.LastIndexByte(prefix, '\n')
	return line, col
}
