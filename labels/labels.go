// Package labels converts between label indices and text, moves decoded
// label sequences in and out of the sparse form produced by CTC decoders and
// scores hypotheses by edit distance.
package labels

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Unknown renders ids that are not in a Map.
const Unknown = "<unk>"

// spaceSymbol stands for a space in character maps.
const spaceSymbol = "_"

// Map is a bidirectional symbol/index table read from a mapping file.
type Map struct {
	// Sep joins decoded symbols: "" for character maps, " " for phone and
	// word maps.
	Sep string

	symbols map[int32]string
	ids     map[string]int32
}

// NewMap builds a Map from a symbol to id table.
func NewMap(ids map[string]int32, sep string) *Map {
	m := &Map{Sep: sep, symbols: make(map[int32]string, len(ids)), ids: make(map[string]int32, len(ids))}
	for s, id := range ids {
		m.ids[s] = id
		m.symbols[id] = s
	}
	return m
}

// LoadMap reads a mapping file made of "symbol index" lines. Empty lines are
// skipped.
func LoadMap(path, sep string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer f.Close()

	ids := make(map[string]int32)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected \"symbol index\", got %q", path, line, scanner.Text())
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid index: %w", path, line, err)
		}
		ids[fields[0]] = int32(id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return NewMap(ids, sep), nil
}

// Len returns the number of symbols.
func (m *Map) Len() int { return len(m.ids) }

// Symbol returns the symbol of id.
func (m *Map) Symbol(id int32) (string, bool) {
	s, ok := m.symbols[id]
	return s, ok
}

// ID returns the index of symbol.
func (m *Map) ID(symbol string) (int32, bool) {
	id, ok := m.ids[symbol]
	return id, ok
}

// Decode renders a label sequence as text. In character maps the space
// symbol becomes a space.
func (m *Map) Decode(ids []int32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		s, ok := m.symbols[id]
		switch {
		case !ok:
			s = Unknown
		case m.Sep == "" && s == spaceSymbol:
			s = " "
		}
		parts[i] = s
	}
	return strings.Join(parts, m.Sep)
}

// Encode is the inverse of Decode.
func (m *Map) Encode(text string) ([]int32, error) {
	var symbols []string
	if m.Sep == "" {
		for _, r := range text {
			s := string(r)
			if s == " " {
				s = spaceSymbol
			}
			symbols = append(symbols, s)
		}
	} else {
		symbols = strings.Fields(text)
	}

	out := make([]int32, len(symbols))
	for i, s := range symbols {
		id, ok := m.ids[s]
		if !ok {
			return nil, fmt.Errorf("symbol %q is not in the map", s)
		}
		out[i] = id
	}
	return out, nil
}
