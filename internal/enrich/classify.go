package enrich

import "strings"

// Status is the derived classification of a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoMatch Status = "no_match"
	StatusError   Status = "error"
)

// Outcome is a classified Result. It is always exactly one of Success, NoMatch or Failure.
type Outcome interface {
	Status() Status
	outcome()
}

// Success carries a reply with a best contact.
type Success struct {
	Result Result
}

// NoMatch means the model found nothing usable. Reason is the model's message, if any.
type NoMatch struct {
	Reason string
}

// Failure is a soft or hard error for the item.
type Failure struct {
	Message string
}

func (Success) Status() Status { return StatusSuccess }
func (NoMatch) Status() Status { return StatusNoMatch }
func (Failure) Status() Status { return StatusError }

func (Success) outcome() {}
func (NoMatch) outcome() {}
func (Failure) outcome() {}

// Evaluate classifies r. An error field wins over everything else; an explicit no_match
// status or a missing best contact is a NoMatch.
func Evaluate(r Result) Outcome {
	switch {
	case r.Error != "":
		return Failure{Message: r.Error}
	case r.Status == string(StatusNoMatch) || r.BestContact == nil:
		return NoMatch{Reason: r.Message}
	default:
		return Success{Result: r}
	}
}

// Classify is Evaluate reduced to its status.
func Classify(r Result) Status {
	return Evaluate(r).Status()
}

// Message is the row message for r: the error, else the model's message, else empty.
func Message(r Result) string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// HasContact reports whether r carries a non-empty best phone or email.
func HasContact(r Result) bool {
	if r.BestContact == nil {
		return false
	}
	return nonEmpty(r.BestContact.Phone) || nonEmpty(r.BestContact.Email)
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
