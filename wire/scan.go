package wire

import (
	"errors"
	"strconv"
	"strings"
)

// splitSpaces splits s on single spaces into at most n fields, the way an
// HTTP request line's "METHOD SP URL SP VERSION" is tokenized — any
// spaces beyond the first n-1 stay in the last field.
func splitSpaces(s string, n int) []string {
	fields := make([]string, 0, n)
	for len(fields) < n-1 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			break
		}
		fields = append(fields, s[:i])
		s = s[i+1:]
	}
	fields = append(fields, s)
	return fields
}

func parseHTTPVersion(token string) (major, minor int, err error) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(token, prefix) {
		return 0, 9, nil // HTTP/0.9 has no version token at all; tolerated
	}
	rest := token[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, errors.New("wire: malformed HTTP version")
	}
	major, err = strconv.Atoi(rest[:dot])
	if err != nil {
		return 0, 0, errors.New("wire: malformed HTTP version")
	}
	minor, err = strconv.Atoi(rest[dot+1:])
	if err != nil {
		return 0, 0, errors.New("wire: malformed HTTP version")
	}
	return major, minor, nil
}

func splitHeaderLine(line []byte) (name, value string, err error) {
	i := indexByte(line, ':')
	if i < 0 {
		return "", "", errors.New("wire: malformed header line")
	}
	name = string(line[:i])
	if name == "" {
		return "", "", errors.New("wire: empty header name")
	}
	value = trimASCIISpace(string(line[i+1:]))
	return name, value, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimASCIISpace(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func asciiLower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

// parseChunkSize parses a chunk-size line, discarding any chunk
// extension (";ext=value") the way RFC 7230 §4.1.1 allows.
func parseChunkSize(line []byte) (int64, error) {
	if i := indexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	s := trimASCIISpace(string(line))
	if s == "" {
		return 0, errors.New("wire: empty chunk size")
	}
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil || n < 0 {
		return 0, errors.New("wire: malformed chunk size")
	}
	return n, nil
}
