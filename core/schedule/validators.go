package schedule

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-schedule/core"
)

var (
	weekdayTag  = "weekday"
	weekdayText = "must be a day of the week (mon, tue, wed, thu, fri, sat, sun)"

	endAfterStartTag  = "endafterstart"
	endAfterStartText = "end time must be after start time"

	timezoneTag  = "timezone"
	timezoneText = "must be an IANA time zone name, e.g. Africa/Kinshasa"

	durationRangeTag  = "durationrange"
	durationRangeText = fmt.Sprintf("class duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
)

// InitValidators registers the schedule validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	core.RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText)

	core.RegisterCustomTranslation(validate, translator, timezoneTag, timezoneText, true)

	validate.RegisterStructValidation(ruleStructValidation, Rule{})
	core.RegisterCustomTranslation(validate, translator, endAfterStartTag, endAfterStartText)
	core.RegisterCustomTranslation(validate, translator, durationRangeTag, durationRangeText)
}

// weekdayValidation accepts short and long English weekday names.
func weekdayValidation(fl validator.FieldLevel) bool {
	_, err := ParseWeekday(fl.Field().String())
	return err == nil
}

// ruleStructValidation checks that the class ends after it starts, the same day, within the duration bounds.
func ruleStructValidation(sl validator.StructLevel) {
	rule, ok := sl.Current().Interface().(Rule)
	if !ok {
		return
	}
	start, err := ParseTimeOfDay(rule.StartTime)
	if err != nil {
		return // reported by field validation
	}
	end, err := ParseTimeOfDay(rule.EndTime)
	if err != nil {
		return
	}

	duration := end.Minutes() - start.Minutes()
	switch {
	case duration <= 0:
		sl.ReportError(rule.EndTime, "end_time", "EndTime", endAfterStartTag, "")
	case duration < MinDurationMinutes || duration > MaxDurationMinutes:
		sl.ReportError(rule.EndTime, "end_time", "EndTime", durationRangeTag, "")
	}
}
