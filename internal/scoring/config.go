package scoring

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks a scoring configuration that is missing a required key,
// carries an unknown key, or holds an out-of-range value.
var ErrInvalidConfig = errors.New("invalid scoring config")

var validate = validator.New()

// Config is the canonical scoring configuration. Every field is required; pointers
// distinguish an absent key from a zero value.
type Config struct {
	Weights    *Weights    `json:"weights" validate:"required"`
	Subweights *Subweights `json:"subweights" validate:"required"`
	Policies   *Policies   `json:"policies" validate:"required"`
}

type Weights struct {
	Education    *float64 `json:"education" validate:"required,gte=0"`
	Experience   *float64 `json:"experience" validate:"required,gte=0"`
	Publications *float64 `json:"publications" validate:"required,gte=0"`
	Awards       *float64 `json:"awards" validate:"required,gte=0"`
	Coherence    *float64 `json:"coherence" validate:"required,gte=0"`
}

type Subweights struct {
	Education  *EducationSubweights  `json:"education" validate:"required"`
	Experience *ExperienceSubweights `json:"experience" validate:"required"`
}

type EducationSubweights struct {
	DegreeLevel    *float64 `json:"degree_level" validate:"required,gte=0"`
	UniversityTier *float64 `json:"university_tier" validate:"required,gte=0"`
	GPA            *float64 `json:"gpa" validate:"required,gte=0"`
}

type ExperienceSubweights struct {
	DurationMonths *float64 `json:"duration_months" validate:"required,gte=0"`
	DomainMatch    *float64 `json:"domain_match" validate:"required,gte=0"`
}

type Policies struct {
	TargetDomain        *string  `json:"target_domain" validate:"required,min=1"`
	MinMonthsExperience *float64 `json:"min_months_experience" validate:"required,gt=0"`
	MissingValuePenalty *float64 `json:"missing_value_penalty" validate:"required,gte=0,lte=1"`
}

// Validate reports missing keys and out-of-range values.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q check", ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParseConfig decodes a JSON or YAML document into a validated Config.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidConfig, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidConfig)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a scoring configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}
	return ParseConfig(data)
}
