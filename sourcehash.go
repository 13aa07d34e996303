package shadercombo

import (
	"hash/crc32"
	"path/filepath"
	"strings"
)

// FileReader resolves a path to its raw contents, the seam that lets the
// hasher run against either the real filesystem or a test fixture set.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// HashSource computes a stable CRC-32 over a shader's transitively
// included source text: recursively expand local #include directives,
// normalize CRLF to LF, then hash with the standard IEEE polynomial (poly
// 0xEDB88320, init/final XOR 0xFFFFFFFF — exactly what
// crc32.ChecksumIEEE computes).
func HashSource(r FileReader, path string) (uint32, error) {
	expanded, err := expandIncludes(r, path, map[string]bool{})
	if err != nil {
		return 0, err
	}
	normalized := normalizeLineEndings(expanded)
	return crc32.ChecksumIEEE(normalized), nil
}

// expandIncludes substitutes every local #include "..." directive with the
// already-expanded contents of the named file, resolved relative to the
// including file's directory. visiting guards against a cycle turning into
// infinite recursion; a cycle is always an authoring error, so it surfaces
// as an IncludeMissingError rather than a crash.
func expandIncludes(r FileReader, path string, visiting map[string]bool) ([]byte, error) {
	data, err := r.ReadFile(path)
	if err != nil {
		return nil, &IncludeMissingError{Name: path}
	}
	if visiting[path] {
		return nil, &IncludeMissingError{Name: path}
	}
	visiting[path] = true
	defer delete(visiting, path)

	dir := filepath.Dir(path)
	var out strings.Builder
	out.Grow(len(data))

	lines := splitKeepEnd(data)
	for _, line := range lines {
		trimmed := strings.TrimSpace(stripLineEnding(line))
		if name, ok := parseLocalInclude(trimmed); ok {
			childPath := filepath.Join(dir, name)
			childExpanded, err := expandIncludes(r, childPath, visiting)
			if err != nil {
				return nil, err
			}
			out.Write(childExpanded)
			continue
		}
		out.Write(line)
	}
	return []byte(out.String()), nil
}

// parseLocalInclude recognizes #include "name" (local/quoted form only —
// angle-bracket includes are not a local file and are left as ordinary
// text).
func parseLocalInclude(line string) (string, bool) {
	const prefix = "#include"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(prefix):])
	if len(rest) < 2 || rest[0] != '"' {
		return "", false
	}
	end := strings.IndexByte(rest[1:], '"')
	if end < 0 {
		return "", false
	}
	return rest[1 : 1+end], true
}

// splitKeepEnd splits data into lines, each including its trailing line
// ending (if any), so textual substitution of an #include line preserves
// surrounding layout exactly.
func splitKeepEnd(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			lines = append(lines, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func stripLineEnding(line []byte) string {
	s := string(line)
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s
}

// normalizeLineEndings collapses every CRLF pair to a single LF.
func normalizeLineEndings(data []byte) []byte {
	if !strings.Contains(string(data), "\r\n") {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			continue
		}
		out = append(out, data[i])
	}
	return out
}
