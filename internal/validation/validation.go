package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// Problem is a single field-level validation failure
type Problem struct {
	Field       string
	Rule        string
	Description string
}

// ValidationResult contains all detected problems
type ValidationResult struct {
	Problems []Problem
}

// HasProblems returns true if there are any problems
func (vr *ValidationResult) HasProblems() bool {
	return len(vr.Problems) > 0
}

// FormatReport returns a human-readable report of all problems
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasProblems() {
		return "No problems detected."
	}

	var b strings.Builder
	b.WriteString("Invalid habit:\n")
	for _, p := range vr.Problems {
		fmt.Fprintf(&b, "- %s\n", p.Description)
	}
	return b.String()
}

// Err returns the report as an error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasProblems() {
		return nil
	}
	return errors.New(strings.TrimSuffix(vr.FormatReport(), "\n"))
}

// Validator validates habit input
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(scheduleRules, models.HabitInput{})
	return &Validator{v: v}
}

// scheduleRules enforces that only the schedule field matching the frequency type is set
func scheduleRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(models.HabitInput)

	switch in.FrequencyType {
	case constants.FrequencyDaily:
		if in.FrequencyCount != 0 {
			sl.ReportError(in.FrequencyCount, "FrequencyCount", "FrequencyCount", "daily_no_count", "")
		}
	case constants.FrequencyWeekly, constants.FrequencyMonthly:
		if len(in.FrequencyDays) > 0 {
			sl.ReportError(in.FrequencyDays, "FrequencyDays", "FrequencyDays", "period_no_days", string(in.FrequencyType))
		}
		if in.FrequencyCount < 1 {
			sl.ReportError(in.FrequencyCount, "FrequencyCount", "FrequencyCount", "period_count", string(in.FrequencyType))
		}
		if in.FrequencyType == constants.FrequencyWeekly && in.FrequencyCount > 7 {
			sl.ReportError(in.FrequencyCount, "FrequencyCount", "FrequencyCount", "weekly_count_max", "7")
		}
	}
}

// ValidateHabitInput checks a new habit's fields
func (v *Validator) ValidateHabitInput(in models.HabitInput) ValidationResult {
	err := v.v.Struct(in)
	if err == nil {
		return ValidationResult{}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationResult{Problems: []Problem{{Rule: "invalid", Description: err.Error()}}}
	}

	result := ValidationResult{Problems: make([]Problem, 0, len(verrs))}
	for _, fe := range verrs {
		result.Problems = append(result.Problems, Problem{
			Field:       fe.Field(),
			Rule:        fe.Tag(),
			Description: describe(fe),
		})
	}
	return result
}

// ValidateHabit checks the user-editable fields of an existing habit, e.g. after an update
func (v *Validator) ValidateHabit(h models.Habit) ValidationResult {
	return v.ValidateHabitInput(InputFromHabit(h))
}

// InputFromHabit extracts the user-editable fields of h
func InputFromHabit(h models.Habit) models.HabitInput {
	return models.HabitInput{
		Title:          h.Title,
		Icon:           h.Icon,
		Description:    h.Description,
		Category:       h.Category,
		BgColor:        h.BgColor,
		TargetCount:    h.TargetCount,
		TargetUnit:     h.TargetUnit,
		FrequencyType:  h.FrequencyType,
		FrequencyDays:  h.FrequencyDays,
		FrequencyCount: h.FrequencyCount,
	}
}

func describe(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex colour like #4caf50", field)
	case "unique":
		return fmt.Sprintf("%s must not repeat a weekday", field)
	case "daily_no_count":
		return "frequency_count only applies to weekly or monthly habits"
	case "period_no_days":
		return fmt.Sprintf("frequency_days cannot be set on a %s habit", fe.Param())
	case "period_count":
		return fmt.Sprintf("a %s habit needs frequency_count of at least 1", fe.Param())
	case "weekly_count_max":
		return "a weekly habit can be done at most 7 times per week"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// toSnake turns "FrequencyDays[0]" into "frequency_days[0]"
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
