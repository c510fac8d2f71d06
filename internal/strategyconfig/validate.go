package strategyconfig

import (
	"fmt"
	"regexp"

	"github.com/robfig/cron/v3"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/scans"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// ScheduleParser accepts standard 5-field specs, an optional seconds field and descriptors
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Universes lists the accepted universe names
var Universes = []string{"us-all", "nasdaq", "nyse", "sp500", "custom"}

var presetName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	if cfg.Defaults.Period != "" {
		if err := contracts.ValidatePeriod(cfg.Defaults.Period); err != nil {
			return ValidationError{"defaults.period", err.Error()}
		}
	}
	if cfg.Defaults.Universe != "" && !isUniverse(cfg.Defaults.Universe) {
		return ValidationError{"defaults.universe", fmt.Sprintf("must be one of %v", Universes)}
	}
	if cfg.Defaults.MaxCount < 0 {
		return ValidationError{"defaults.max_count", "must be >= 0"}
	}

	if len(cfg.Presets) == 0 {
		return ValidationError{"presets", "required"}
	}

	seen := make(map[string]struct{}, len(cfg.Presets))
	for i, p := range cfg.Presets {
		field := fmt.Sprintf("presets[%d]", i)

		if !presetName.MatchString(p.Name) {
			return ValidationError{field + ".name", "must match [a-z0-9_-]+"}
		}
		if _, dup := seen[p.Name]; dup {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate preset %q", p.Name)}
		}
		seen[p.Name] = struct{}{}

		if !scans.Default().Has(p.Strategy) {
			return ValidationError{field + ".strategy", fmt.Sprintf("unknown strategy %q", p.Strategy)}
		}
		if p.Period != "" {
			if err := contracts.ValidatePeriod(p.Period); err != nil {
				return ValidationError{field + ".period", err.Error()}
			}
		}
		if p.Universe != "" && !isUniverse(p.Universe) {
			return ValidationError{field + ".universe", fmt.Sprintf("must be one of %v", Universes)}
		}
		if p.Universe == "custom" && p.UniverseFile == "" {
			return ValidationError{field + ".universe_file", "required for custom universe"}
		}
		if p.Universe == "" && len(p.Symbols) == 0 && cfg.Defaults.Universe == "" {
			return ValidationError{field, "universe or symbols required"}
		}
		if p.MaxCount < 0 {
			return ValidationError{field + ".max_count", "must be >= 0"}
		}
		if p.Schedule != "" {
			if _, err := ScheduleParser.Parse(p.Schedule); err != nil {
				return ValidationError{field + ".schedule", err.Error()}
			}
		}
		if p.Export != nil {
			if p.Export.Dir == "" {
				return ValidationError{field + ".export.dir", "required"}
			}
			if p.Export.Format != "json" && p.Export.Format != "csv" {
				return ValidationError{field + ".export.format", "must be json or csv"}
			}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	for _, p := range cfg.Presets {
		p = cfg.withDefaults(p)

		// 전체 미국 시장 스캔은 다운로드 시간이 김
		if p.Universe == "us-all" && p.MaxCount == 0 {
			warnings = append(warnings, Warning{
				Code:    "UNBOUNDED_UNIVERSE",
				Message: fmt.Sprintf("preset %s scans the full US universe without max_count", p.Name),
			})
		}

		if p.Schedule != "" && p.Export == nil {
			warnings = append(warnings, Warning{
				Code:    "SCHEDULE_WITHOUT_EXPORT",
				Message: fmt.Sprintf("preset %s is scheduled but its results are not exported", p.Name),
			})
		}
	}

	return warnings
}

func isUniverse(name string) bool {
	for _, u := range Universes {
		if u == name {
			return true
		}
	}
	return false
}
