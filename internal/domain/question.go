package domain

import "strings"

// QuestionType tags a question with the widget that renders it and the
// validation applied to its response. The set is closed; unknown tags are
// rejected at dispatch.
type QuestionType string

const (
	TypeSingleSelect        QuestionType = "single-select"
	TypeStandoutFeatures    QuestionType = "standout-features"
	TypeQualityScore        QuestionType = "quality-score"
	TypeQualitySpecificArea QuestionType = "quality-specific-area"
	TypeInspectionFeatures  QuestionType = "inspection-features"
	TypeMultipleSelect      QuestionType = "multiple-select"
	TypeMultipleChoice      QuestionType = "multiple-choice"
	TypeSlider              QuestionType = "single-select-slider"
	TypeFreeText            QuestionType = "input-text-only"
	TypeImageUpload         QuestionType = "upload-only"
	TypeComparableInput     QuestionType = "comparable-input"
	TypePreselectDisplay    QuestionType = "preselect-display"
	TypeReportDownload      QuestionType = "report-download-prompt"
)

// LogicSkip on an answered question invalidates everything downstream of it;
// the page conversation must be reloaded rather than appended to.
const LogicSkip = "skip"

// Option is a single selectable answer.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
}

// Question is one conversational turn of a wizard page.
type Question struct {
	QuestionID string       `json:"question_id"`
	Text       string       `json:"question_text"`
	Type       QuestionType `json:"question_type"`
	Options    []Option     `json:"response_options"`
	Response   []string     `json:"response,omitempty"`
	RightPanel string       `json:"right_panel,omitempty"`
	IsLast     bool         `json:"isLast"`
	Logic      string       `json:"logic,omitempty"`
}

// Answered reports whether the question carries a non-empty response.
func (q Question) Answered() bool {
	for _, v := range q.Response {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// AutoAnswerable reports whether the question presents no interactive choice
// at all: no options to pick from and no side panel to acknowledge. Such
// questions are answered with AnswerDefault without a user event.
func (q Question) AutoAnswerable() bool {
	return len(q.Options) == 0 && q.RightPanel == ""
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// AutoAnswer is a typed sentinel for responses the wizard produces on the
// user's behalf. The backend wire format overloads option ids "1" and "0"
// for these; the overloading is confined to WireValue.
type AutoAnswer int

const (
	// AnswerDefault acknowledges an option-less, panel-less question.
	AnswerDefault AutoAnswer = iota
	// AnswerSkip declines an explicitly skippable right-panel question.
	AnswerSkip
)

// WireValue returns the option id the backend expects for the sentinel.
func (a AutoAnswer) WireValue() string {
	if a == AnswerSkip {
		return "0"
	}
	return "1"
}

// ChatTurn is one entry of the prior free-text answer history for a page.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
