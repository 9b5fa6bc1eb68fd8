package narrative

// Outcome is the validation state of one generated report. Only this
// package constructs the terminal variants, and a Rejected value can only
// hold the fallback template.
type Outcome interface {
	Status() Status
	Method() Method
	Content() string
}

// Generated is unvalidated model output. It is an input to Validate, never a
// servable result.
type Generated struct {
	Content  string
	Audience Audience
}

type Approved struct{ content string }

func (a Approved) Status() Status  { return StatusApproved }
func (a Approved) Method() Method  { return MethodAI }
func (a Approved) Content() string { return a.content }

type Rewritten struct{ content string }

func (r Rewritten) Status() Status  { return StatusRewritten }
func (r Rewritten) Method() Method  { return MethodAI }
func (r Rewritten) Content() string { return r.content }

type Rejected struct {
	content string
	reason  string
}

func (r Rejected) Status() Status  { return StatusRejected }
func (r Rejected) Method() Method  { return MethodTemplate }
func (r Rejected) Content() string { return r.content }

// Reason names why the model output was discarded.
func (r Rejected) Reason() string { return r.reason }
