package sourcemap

import (
	"errors"
	"fmt"
	"sort"
)

// Mapping correlates a generated location with an original location in a
// named source. Segments without a source (one-field segments) keep an empty
// Source.
type Mapping struct {
	GeneratedLine   int
	GeneratedColumn int
	Source          string
	OriginalLine    int
	OriginalColumn  int
}

// Generated returns the generated location of the mapping.
func (m Mapping) Generated() Location {
	return Location{Line: m.GeneratedLine, Column: m.GeneratedColumn}
}

// Original returns the original location of the mapping.
func (m Mapping) Original() Location {
	return Location{Line: m.OriginalLine, Column: m.OriginalColumn}
}

// HasSource reports whether the mapping points into an original file.
func (m Mapping) HasSource() bool { return m.Source != "" }

var errBadVLQ = errors.New("sourcemap: invalid base64 VLQ")

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		idx[base64Alphabet[i]] = int8(i)
	}
	return idx
}()

// decodeMappings decodes the "mappings" field of a v3 source map. Generated
// lines are 1-based and original lines are converted to 1-based; columns stay
// 0-based. The result is sorted by generated location; segments that share a
// generated location keep their encoded order.
func decodeMappings(encoded string, sources []string) ([]Mapping, error) {
	var (
		out       []Mapping
		genLine   = 1
		genColumn int
		srcIndex  int
		origLine  int
		origCol   int
		fields    [5]int
	)

	for pos := 0; pos < len(encoded); {
		switch encoded[pos] {
		case ';':
			genLine++
			genColumn = 0
			pos++
			continue
		case ',':
			pos++
			continue
		}

		n := 0
		for pos < len(encoded) && encoded[pos] != ',' && encoded[pos] != ';' {
			if n == len(fields) {
				return nil, fmt.Errorf("sourcemap: segment at line %d has more than %d fields", genLine, len(fields))
			}
			v, next, err := decodeVLQ(encoded, pos)
			if err != nil {
				return nil, fmt.Errorf("%w at offset %d", err, pos)
			}
			fields[n] = v
			n++
			pos = next
		}

		genColumn += fields[0]
		m := Mapping{GeneratedLine: genLine, GeneratedColumn: genColumn}
		switch n {
		case 1:
		case 4, 5:
			srcIndex += fields[1]
			origLine += fields[2]
			origCol += fields[3]
			if srcIndex < 0 || srcIndex >= len(sources) {
				return nil, fmt.Errorf("sourcemap: source index %d out of range (%d sources)", srcIndex, len(sources))
			}
			m.Source = sources[srcIndex]
			m.OriginalLine = origLine + 1
			m.OriginalColumn = origCol
		default:
			return nil, fmt.Errorf("sourcemap: segment at line %d has %d fields", genLine, n)
		}
		if m.GeneratedColumn < 0 || (m.HasSource() && (m.OriginalLine < 1 || m.OriginalColumn < 0)) {
			return nil, fmt.Errorf("sourcemap: negative position in segment at line %d", genLine)
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Generated().Before(out[j].Generated())
	})
	return out, nil
}

func decodeVLQ(s string, pos int) (value, next int, err error) {
	var result, shift int
	for {
		if pos >= len(s) {
			return 0, pos, errBadVLQ
		}
		digit := base64Index[s[pos]]
		if digit < 0 {
			return 0, pos, errBadVLQ
		}
		pos++
		result += int(digit&31) << shift
		if digit&32 == 0 {
			break
		}
		shift += 5
		if shift > 60 {
			return 0, pos, errBadVLQ
		}
	}
	if result&1 == 1 {
		return -(result >> 1), pos, nil
	}
	return result >> 1, pos, nil
}
