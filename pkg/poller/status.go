package poller

import (
	"encoding/json"
	"sort"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// Step names a backend job.
type Step string

const (
	StepIdle                Step = "idle"
	StepFindReference       Step = "find_reference"
	StepLayoutExtraction    Step = "layout_extraction"
	StepTitleGeneration     Step = "title_generation"
	StepPictogramGeneration Step = "pictogram_generation"
	StepVariationPreview    Step = "variation_preview"
	StepFinalExport         Step = "final_export"
	StepDirectGenerate      Step = "ai_direct_generate"
)

// State is the coarse job state.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Status is one decoded status report.
type Status struct {
	Step      Step
	State     State
	Completed bool
	Progress  string
	SessionID string

	// Payload holds the step-specific fields, or nil for steps that carry
	// none. Use a type switch or the typed accessors.
	Payload Payload
}

// Failed reports whether the job finished with an error.
func (s *Status) Failed() bool {
	return s.Completed && s.State == StateError
}

// Done reports whether the job for target has finished, successfully or not.
func (s *Status) Done(target Step) bool {
	return s.Step == target && s.Completed
}

// Titles returns the title payload when the status describes title generation.
func (s *Status) Titles() (*TitlePayload, bool) {
	p, ok := s.Payload.(*TitlePayload)
	return p, ok
}

// Pictograms returns the pictogram payload when the status describes
// pictogram generation.
func (s *Status) Pictograms() (*PictogramPayload, bool) {
	p, ok := s.Payload.(*PictogramPayload)
	return p, ok
}

// Export returns the export payload when the status describes a final export.
func (s *Status) Export() (*ExportPayload, bool) {
	p, ok := s.Payload.(*ExportPayload)
	return p, ok
}

// Payload is implemented by the per-step payload types.
type Payload interface {
	Step() Step
}

// ReferencePayload lists reference layouts compatible with the selected data.
type ReferencePayload struct {
	Templates []json.RawMessage `json:"extraction_templates"`
}

func (*ReferencePayload) Step() Step { return StepFindReference }

// Style is the palette extracted from a reference infographic. Colors are
// RGB triples.
type Style struct {
	Colors     [][]int `json:"colors"`
	Background []int   `json:"bg_color"`
}

// LayoutPayload carries the result of layout extraction.
type LayoutPayload struct {
	Reference string `json:"selected_reference"`
	Style     Style  `json:"style"`
}

func (*LayoutPayload) Step() Step { return StepLayoutExtraction }

// TitleOption is one generated title image.
type TitleOption struct {
	Text      string `json:"title_text"`
	ImagePath string `json:"image_path"`
	Success   bool   `json:"success"`
}

// TitlePayload carries generated title options keyed by file name.
type TitlePayload struct {
	Options     map[string]TitleOption `json:"title_options"`
	CurrentText string                 `json:"current_title_text"`
}

func (*TitlePayload) Step() Step { return StepTitleGeneration }

// Names returns the option names in sorted order.
func (p *TitlePayload) Names() []string { return sortedKeys(p.Options) }

// First returns the first option name in sorted order.
func (p *TitlePayload) First() (string, bool) { return first(p.Names()) }

// PictogramOption is one generated pictogram image.
type PictogramOption struct {
	Prompt    string `json:"pictogram_prompt"`
	ImagePath string `json:"image_path"`
	Success   bool   `json:"success"`
}

// PictogramPayload carries generated pictogram options keyed by file name.
type PictogramPayload struct {
	Options map[string]PictogramOption `json:"pictogram_options"`
}

func (*PictogramPayload) Step() Step { return StepPictogramGeneration }

// Names returns the option names in sorted order.
func (p *PictogramPayload) Names() []string { return sortedKeys(p.Options) }

// First returns the first option name in sorted order.
func (p *PictogramPayload) First() (string, bool) { return first(p.Names()) }

// ExportPayload carries the path of a finished export or direct generation.
type ExportPayload struct {
	FinalImagePath string `json:"final_image_path"`
	step           Step
}

func (p *ExportPayload) Step() Step {
	if p.step == "" {
		return StepFinalExport
	}
	return p.step
}

type envelope struct {
	Step      Step   `json:"step"`
	Status    State  `json:"status"`
	Completed bool   `json:"completed"`
	Progress  string `json:"progress"`
	ID        string `json:"id"`
}

// Decode parses a raw status object. Unknown steps decode with a nil
// Payload.
func Decode(data []byte) (*Status, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode job status")
	}
	st := &Status{
		Step:      env.Step,
		State:     env.Status,
		Completed: env.Completed,
		Progress:  env.Progress,
		SessionID: env.ID,
	}
	if st.Step == "" {
		st.Step = StepIdle
	}

	var p Payload
	switch st.Step {
	case StepFindReference:
		p = &ReferencePayload{}
	case StepLayoutExtraction:
		p = &LayoutPayload{}
	case StepTitleGeneration:
		p = &TitlePayload{}
	case StepPictogramGeneration:
		p = &PictogramPayload{}
	case StepFinalExport, StepDirectGenerate:
		p = &ExportPayload{step: st.Step}
	default:
		return st, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s payload", st.Step)
	}
	st.Payload = p
	return st, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func first(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}
