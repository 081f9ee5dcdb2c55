package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"offer-wizard/internal/domain"
)

// WidgetKind names the input widget a front end should render for a
// question.
type WidgetKind string

const (
	WidgetSingleSelect WidgetKind = "single-select"
	WidgetMultiSelect  WidgetKind = "multi-select"
	WidgetSlider       WidgetKind = "slider"
	WidgetFreeText     WidgetKind = "free-text"
	WidgetImageUpload  WidgetKind = "image-upload"
	WidgetComparables  WidgetKind = "comparables"
	WidgetDisplay      WidgetKind = "display"
)

// SubmitMode tells the front end whether a pick submits immediately or an
// explicit Submit/Skip action is required.
type SubmitMode int

const (
	SubmitImmediate SubmitMode = iota
	SubmitExplicit
	SubmitNone
)

// Widget couples a question type with its renderer hint and response
// validator. One entry per type; selection is a single map lookup, never a
// conditional cascade.
type Widget struct {
	Kind     WidgetKind
	Submit   SubmitMode
	Validate func(q domain.Question, values []string) error
}

var widgets = map[domain.QuestionType]Widget{
	domain.TypeSingleSelect:        {Kind: WidgetSingleSelect, Submit: SubmitImmediate, Validate: validateSingleSelect},
	domain.TypeStandoutFeatures:    {Kind: WidgetSingleSelect, Submit: SubmitImmediate, Validate: validateSingleSelect},
	domain.TypeQualityScore:        {Kind: WidgetSingleSelect, Submit: SubmitImmediate, Validate: validateSingleSelect},
	domain.TypeQualitySpecificArea: {Kind: WidgetSingleSelect, Submit: SubmitImmediate, Validate: validateSingleSelect},
	domain.TypeInspectionFeatures:  {Kind: WidgetSingleSelect, Submit: SubmitImmediate, Validate: validateSingleSelect},
	domain.TypeMultipleSelect:      {Kind: WidgetMultiSelect, Submit: SubmitExplicit, Validate: validateMultiSelect},
	domain.TypeMultipleChoice:      {Kind: WidgetMultiSelect, Submit: SubmitExplicit, Validate: validateMultiSelect},
	domain.TypeSlider:              {Kind: WidgetSlider, Submit: SubmitImmediate, Validate: validateSlider},
	domain.TypeFreeText:            {Kind: WidgetFreeText, Submit: SubmitExplicit, Validate: validateFreeText},
	domain.TypeImageUpload:         {Kind: WidgetImageUpload, Submit: SubmitExplicit, Validate: validateUpload},
	domain.TypeComparableInput:     {Kind: WidgetComparables, Submit: SubmitExplicit, Validate: validateAcknowledge},
	domain.TypePreselectDisplay:    {Kind: WidgetDisplay, Submit: SubmitNone, Validate: validateAcknowledge},
	domain.TypeReportDownload:      {Kind: WidgetDisplay, Submit: SubmitNone, Validate: validateAcknowledge},
}

// WidgetFor returns the widget registered for a question type.
func WidgetFor(t domain.QuestionType) (Widget, bool) {
	w, ok := widgets[t]
	return w, ok
}

// ValidateResponse runs the widget validator for the question's type.
// Sentinel auto-answers are always accepted; they bypass widget rules.
func ValidateResponse(q domain.Question, values []string) error {
	if isSentinel(values) {
		return nil
	}
	w, ok := WidgetFor(q.Type)
	if !ok {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return w.Validate(q, values)
}

func isSentinel(values []string) bool {
	if len(values) != 1 {
		return false
	}
	return values[0] == domain.AnswerDefault.WireValue() || values[0] == domain.AnswerSkip.WireValue()
}

func validateSingleSelect(q domain.Question, values []string) error {
	if len(values) != 1 {
		return fmt.Errorf("exactly one option required, got %d", len(values))
	}
	if !q.HasOption(values[0]) {
		return fmt.Errorf("option %q is not offered", values[0])
	}
	return nil
}

func validateMultiSelect(q domain.Question, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("at least one option must be selected")
	}
	for _, v := range values {
		if !q.HasOption(v) {
			return fmt.Errorf("option %q is not offered", v)
		}
	}
	return nil
}

func validateSlider(q domain.Question, values []string) error {
	if len(values) != 1 {
		return fmt.Errorf("exactly one slider value required, got %d", len(values))
	}
	points, err := SliderCutPoints(q)
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return fmt.Errorf("slider value %q is not numeric", values[0])
	}
	for _, p := range points {
		if p == v {
			return nil
		}
	}
	return fmt.Errorf("slider value %v is not an allowed cut point", v)
}

func validateFreeText(_ domain.Question, values []string) error {
	if len(values) != 1 || strings.TrimSpace(values[0]) == "" {
		return fmt.Errorf("a non-empty answer is required")
	}
	return nil
}

// validateUpload accepts any response: the upload itself is a side effect,
// independent of the text value submitted with the question.
func validateUpload(domain.Question, []string) error {
	return nil
}

func validateAcknowledge(domain.Question, []string) error {
	return nil
}

// SliderCutPoints parses the question's option ids as the allowed discrete
// cut points, in option order.
func SliderCutPoints(q domain.Question) ([]float64, error) {
	if len(q.Options) == 0 {
		return nil, fmt.Errorf("slider question %s has no cut points", q.QuestionID)
	}
	points := make([]float64, 0, len(q.Options))
	for _, o := range q.Options {
		p, err := strconv.ParseFloat(o.ID, 64)
		if err != nil {
			return nil, fmt.Errorf("slider cut point %q is not numeric", o.ID)
		}
		points = append(points, p)
	}
	return points, nil
}

// SnapSliderValue snaps a raw picker value to the nearest allowed cut point.
// A value already on a cut point is returned verbatim.
func SnapSliderValue(q domain.Question, raw float64) (float64, error) {
	points, err := SliderCutPoints(q)
	if err != nil {
		return 0, err
	}
	best := points[0]
	bestDist := math.Abs(raw - best)
	for _, p := range points[1:] {
		if d := math.Abs(raw - p); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, nil
}
