package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec converts a transcript to and from its on-disk representation
type Codec interface {
	Encode(msgs []Message) ([]byte, error)
	Decode(b []byte) ([]Message, error)
}

const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatLines = "lines"
)

// CodecFor picks a codec by format name. An empty format is inferred from the extension of path, falling back to the
// line format for anything that is not JSON or YAML.
func CodecFor(format string, path string) (Codec, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			format = FormatJSON
		case ".yaml", ".yml":
			format = FormatYAML
		default:
			format = FormatLines
		}
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatYAML:
		return YAMLCodec{}, nil
	case FormatLines:
		return LineCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown transcript format %q", format)
	}
}

// JSONCodec stores a transcript as an indented array of {"role", "content"} objects
type JSONCodec struct{}

func (JSONCodec) Encode(msgs []Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return append(b, '\n'), nil
}

func (JSONCodec) Decode(b []byte) ([]Message, error) {
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	if err := validate(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// YAMLCodec stores a transcript as a YAML sequence of role/content mappings
type YAMLCodec struct{}

func (YAMLCodec) Encode(msgs []Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(msgs); err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Decode(b []byte) ([]Message, error) {
	var msgs []Message
	if err := yaml.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	if err := validate(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// LineCodec stores one message per line as "role:content". The role ends at the first ':'. Within content a
// backslash is written as `\\`, a line feed as `\n` and a carriage return as `\r`, so every message fits on one line
// and content may contain ':' freely.
type LineCodec struct{}

func (LineCodec) Encode(msgs []Message) ([]byte, error) {
	if err := validate(msgs); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, m := range msgs {
		buf.WriteString(string(m.Role))
		buf.WriteByte(':')
		buf.WriteString(escapeLine(m.Content))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (LineCodec) Decode(b []byte) ([]Message, error) {
	msgs := []Message{}
	for i, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		role, content, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: line %d has no role separator", ErrMalformedData, i+1)
		}
		m := Message{Role: Role(role)}
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: line %d has unknown role %q", ErrMalformedData, i+1, role)
		}
		var err error
		m.Content, err = unescapeLine(content)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedData, i+1, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

var lineEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

func escapeLine(s string) string {
	return lineEscaper.Replace(s)
}

func unescapeLine(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("dangling escape at end of line")
		}
		switch s[i] {
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			return "", fmt.Errorf("unknown escape sequence \\%c", s[i])
		}
	}
	return sb.String(), nil
}
