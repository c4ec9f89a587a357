package models

// Outcome is the typed result of a degrade-gracefully operation. Handlers map
// outcomes onto redirects or canned replies; services log and count them.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeNotAuthenticated    Outcome = "not_authenticated"
	OutcomeNoFile              Outcome = "no_file"
	OutcomeInvalidRequest      Outcome = "invalid_request"
	OutcomeUpstreamUnavailable Outcome = "upstream_unavailable"
	OutcomePersistFailed       Outcome = "persist_failed"
	OutcomeAssistantDisabled   Outcome = "assistant_disabled"
)

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o == OutcomeSuccess
}

func (o Outcome) String() string {
	return string(o)
}
