// Package cv holds the structured CV record produced by extraction and consumed by scoring.
package cv

const (
	// SourceModel marks a record produced by the primary extraction model.
	SourceModel = "model"
	// SourceFallbackModel marks a record produced by the secondary model after retries ran out.
	SourceFallbackModel = "fallback-model"
	// SourceHeuristic marks a low-confidence record produced by pattern matching.
	SourceHeuristic = "heuristic"
	// SourceEmpty marks a soft-failed record with every section empty.
	SourceEmpty = "empty"
)

// StructuredCV is the normalized record of a candidate.
type StructuredCV struct {
	Name         string             `json:"name"`
	Education    []EducationEntry   `json:"education"`
	Experience   []ExperienceEntry  `json:"experience"`
	Publications []PublicationEntry `json:"publications"`
	Awards       []AwardEntry       `json:"awards"`

	Source   string   `json:"source,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type EducationEntry struct {
	Degree     string   `json:"degree"`
	Field      string   `json:"field"`
	University string   `json:"university"`
	Country    string   `json:"country"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	GPA        *float64 `json:"gpa"`
	Scale      *float64 `json:"scale"`
}

type ExperienceEntry struct {
	Title          string `json:"title"`
	Org            string `json:"org"`
	Start          string `json:"start"`
	End            string `json:"end"`
	DurationMonths *int   `json:"duration_months"`
	Domain         string `json:"domain"`
}

type PublicationEntry struct {
	Title          string   `json:"title"`
	Venue          string   `json:"venue"`
	Year           *int     `json:"year"`
	Type           string   `json:"type"`
	Authors        []string `json:"authors"`
	AuthorPosition *int     `json:"author_position"`
	JournalIF      *float64 `json:"journal_if"`
	Domain         string   `json:"domain"`
}

type AwardEntry struct {
	Title  string `json:"title"`
	Issuer string `json:"issuer"`
	Year   *int   `json:"year"`
	Type   string `json:"type"`
}

// Empty returns a structurally valid record with all sections present and empty.
func Empty(name string) *StructuredCV {
	return &StructuredCV{
		Name:         name,
		Education:    []EducationEntry{},
		Experience:   []ExperienceEntry{},
		Publications: []PublicationEntry{},
		Awards:       []AwardEntry{},
		Source:       SourceEmpty,
	}
}

// EnsureSections replaces nil sections with empty slices so that encoding never drops a key.
func (c *StructuredCV) EnsureSections() {
	if c.Education == nil {
		c.Education = []EducationEntry{}
	}
	if c.Experience == nil {
		c.Experience = []ExperienceEntry{}
	}
	if c.Publications == nil {
		c.Publications = []PublicationEntry{}
	}
	if c.Awards == nil {
		c.Awards = []AwardEntry{}
	}
}

// IsEmpty reports whether no section carries any entry.
func (c *StructuredCV) IsEmpty() bool {
	return len(c.Education) == 0 && len(c.Experience) == 0 && len(c.Publications) == 0 && len(c.Awards) == 0
}
