package reward

import (
	"regexp"
	"strings"

	"affiliatehub/pkg/errutil"
	"affiliatehub/services/offer"
)

// SubmissionKind discriminates the two accepted submission shapes.
type SubmissionKind string

const (
	SubmissionAudioResponse SubmissionKind = "audio_response"
	SubmissionVideoReport   SubmissionKind = "video_report"
)

// timeMarkPattern accepts "7", "12", "1:30" or "12:05".
var timeMarkPattern = regexp.MustCompile(`^\d{1,2}(:\d{2})?$`)

const minDescriptionLen = 5

// Submission is the user's answer to an offer prompt. Audio offers
// carry a free-text response; video offers carry a time mark plus a
// description of what was observed at that point.
type Submission struct {
	Kind        SubmissionKind `json:"kind"`
	Text        string         `json:"text,omitempty"`
	TimeMark    string         `json:"time_mark,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Validate checks the submission against the offer kind it claims.
func (s Submission) Validate(kind offer.Kind) error {
	switch kind {
	case offer.KindAudio:
		if s.Kind != SubmissionAudioResponse {
			return errutil.ValidationFailed("audio offers require an audio_response submission", nil)
		}
		if strings.TrimSpace(s.Text) == "" {
			return errutil.ValidationFailed("response text is required", nil)
		}
	case offer.KindVideo:
		if s.Kind != SubmissionVideoReport {
			return errutil.ValidationFailed("video offers require a video_report submission", nil)
		}
		if strings.TrimSpace(s.TimeMark) == "" {
			return errutil.ValidationFailed("time mark is required", nil)
		}
		if !timeMarkPattern.MatchString(strings.TrimSpace(s.TimeMark)) {
			return errutil.ValidationFailed("time mark must look like mm:ss or a minute count", nil)
		}
		if len(strings.TrimSpace(s.Description)) < minDescriptionLen {
			return errutil.ValidationFailed("description must be at least 5 characters", nil)
		}
	default:
		return errutil.BadRequest("unsupported offer kind", nil)
	}

	return nil
}

// Progress translates raw input into a 0-100 completion signal for the
// client's progress bar. Cosmetic only; Validate is the gate.
func Progress(s Submission) int {
	switch s.Kind {
	case SubmissionAudioResponse:
		words := len(strings.Fields(s.Text))
		progress := words * 100 / 5
		if progress > 100 {
			progress = 100
		}
		return progress
	case SubmissionVideoReport:
		progress := 0
		if timeMarkPattern.MatchString(strings.TrimSpace(s.TimeMark)) {
			progress += 50
		}
		if len(strings.TrimSpace(s.Description)) >= minDescriptionLen {
			progress += 50
		}
		return progress
	default:
		return 0
	}
}
