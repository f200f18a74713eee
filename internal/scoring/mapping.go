package scoring

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MatchPolicy selects how substring lookups resolve several matching labels.
type MatchPolicy string

const (
	// MatchFirst returns the first matching label in table order.
	MatchFirst MatchPolicy = "first"
	// MatchLongest returns the longest matching label; ties keep table order.
	MatchLongest MatchPolicy = "longest"
)

const (
	DefaultDegreeValue = 0.4
	DefaultTierValue   = 0.5
	DefaultVenueValue  = 0.1
)

// Entry is one label→value row of a mapping table.
type Entry struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Table is an ordered mapping. Order matters for MatchFirst.
type Table []Entry

// MappingTables holds the lookup tables used by the scoring engine.
type MappingTables struct {
	DegreeLevels    Table
	UniversityTiers Table
	JournalImpact   Table
	MatchPolicy     MatchPolicy
}

// Substring finds a label contained in s, case-insensitively.
func (t Table) Substring(s string, policy MatchPolicy) (float64, bool) {
	s = strings.ToLower(s)

	best, bestLen := -1, 0
	for i, e := range t {
		label := strings.ToLower(e.Label)
		if label == "" || !strings.Contains(s, label) {
			continue
		}
		if policy != MatchLongest {
			return e.Value, true
		}
		if best < 0 || len(label) > bestLen {
			best, bestLen = i, len(label)
		}
	}

	if best < 0 {
		return 0, false
	}
	return t[best].Value, true
}

// Exact finds a label equal to s after trimming surrounding whitespace.
func (t Table) Exact(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, e := range t {
		if strings.TrimSpace(e.Label) == s {
			return e.Value, true
		}
	}
	return 0, false
}

func (m *MappingTables) degreeValue(degree string) float64 {
	if v, ok := m.DegreeLevels.Substring(degree, m.MatchPolicy); ok {
		return v
	}
	return DefaultDegreeValue
}

func (m *MappingTables) tierValue(university string) float64 {
	if v, ok := m.UniversityTiers.Exact(university); ok {
		return v
	}
	return DefaultTierValue
}

func (m *MappingTables) venueValue(venue string) float64 {
	if v, ok := m.JournalImpact.Substring(venue, m.MatchPolicy); ok {
		return v
	}
	return DefaultVenueValue
}

// ParseMappings decodes a JSON or YAML document of mapping tables, keeping key order.
// Absent tables are left empty so lookups fall back to the defaults.
func ParseMappings(data []byte) (*MappingTables, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}

	tables := &MappingTables{MatchPolicy: MatchFirst}
	if len(doc.Content) == 0 {
		return tables, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse mappings: expected an object at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]

		var err error
		switch key {
		case "degree_levels":
			tables.DegreeLevels, err = parseTable(key, value)
		case "university_tiers":
			tables.UniversityTiers, err = parseTable(key, value)
		case "journal_impact":
			tables.JournalImpact, err = parseTable(key, value)
		case "match_policy":
			tables.MatchPolicy = MatchPolicy(value.Value)
			if tables.MatchPolicy != MatchFirst && tables.MatchPolicy != MatchLongest {
				err = fmt.Errorf("match_policy: unknown value %q", value.Value)
			}
		default:
			err = fmt.Errorf("unknown key %q at line %d", key, root.Content[i].Line)
		}
		if err != nil {
			return nil, fmt.Errorf("parse mappings: %w", err)
		}
	}

	return tables, nil
}

// LoadMappings reads and parses a mapping tables file.
func LoadMappings(path string) (*MappingTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	return ParseMappings(data)
}

func parseTable(name string, node *yaml.Node) (Table, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected an object at line %d", name, node.Line)
	}

	table := make(Table, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v float64
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, fmt.Errorf("%s[%q]: %w", name, node.Content[i].Value, err)
		}
		table = append(table, Entry{Label: node.Content[i].Value, Value: v})
	}
	return table, nil
}
