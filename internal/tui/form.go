package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// HabitFormModel holds the raw values of the add form
type HabitFormModel struct {
	Title     string
	Icon      string
	Target    string
	Unit      string
	Frequency constants.FrequencyType
	Count     string
}

func newHabitFormModel() *HabitFormModel {
	return &HabitFormModel{
		Target:    "1",
		Frequency: constants.FrequencyDaily,
	}
}

// Input converts the form values; the form validators have already run
func (fm *HabitFormModel) Input() (models.HabitInput, error) {
	target, err := strconv.Atoi(strings.TrimSpace(fm.Target))
	if err != nil {
		return models.HabitInput{}, fmt.Errorf("invalid target: %w", err)
	}
	in := models.HabitInput{
		Title:         strings.TrimSpace(fm.Title),
		Icon:          strings.TrimSpace(fm.Icon),
		TargetCount:   target,
		TargetUnit:    strings.TrimSpace(fm.Unit),
		FrequencyType: fm.Frequency,
	}
	if fm.Frequency != constants.FrequencyDaily {
		count := 1
		if s := strings.TrimSpace(fm.Count); s != "" {
			if count, err = strconv.Atoi(s); err != nil {
				return models.HabitInput{}, fmt.Errorf("invalid count: %w", err)
			}
		}
		in.FrequencyCount = count
	}
	return in, nil
}

func positiveInt(name string, optional bool) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" && optional {
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		if i <= 0 {
			return fmt.Errorf("%s must be a positive number", name)
		}
		return nil
	}
}

// NewHabitForm creates the form for adding a habit
func NewHabitForm(fm *HabitFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit").
				Value(&fm.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("habit title cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Icon").
				Description("Optional emoji").
				Value(&fm.Icon),
			huh.NewInput().
				Title("Daily target").
				Value(&fm.Target).
				Validate(positiveInt("target", false)),
			huh.NewInput().
				Title("Unit").
				Description("e.g. glasses, pages").
				Value(&fm.Unit),
			huh.NewSelect[constants.FrequencyType]().
				Title("Frequency").
				Options(
					huh.NewOption("Daily", constants.FrequencyDaily),
					huh.NewOption("Weekly", constants.FrequencyWeekly),
					huh.NewOption("Monthly", constants.FrequencyMonthly),
				).
				Value(&fm.Frequency),
			huh.NewInput().
				Title("Days per period").
				Description("For weekly and monthly habits").
				Value(&fm.Count).
				Validate(positiveInt("days per period", true)),
		),
	).WithTheme(huh.ThemeDracula())
}
