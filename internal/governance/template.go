package governance

import "strings"

// Disclaimer closes every report served to a client.
const Disclaimer = "These are observations from play, not conclusions about the learner."

const parentTemplate = `Your child has taken part in learning activities, and patterns of engagement have been observed. These patterns are part of the natural learning process and reflect your child's developing skills.

Supportive approaches that may help include structured routines at home and natural breaks during activities. These approaches can help keep your child engaged while respecting their own rhythm.

` + Disclaimer

const teacherTemplate = `The learner has engaged in learning activities, and patterns of engagement have been observed. These patterns are part of the natural learning process and reflect the learner's developing skills.

Supportive approaches that may help include providing structured routines and allowing for natural breaks during activities. These approaches can help maintain engagement while respecting the learner's natural rhythm.

` + Disclaimer

// FallbackTemplate returns the static report for an audience. Anything other
// than "parent" gets the teacher wording.
func FallbackTemplate(audience string) string {
	if audience == "parent" {
		return parentTemplate
	}
	return teacherTemplate
}

// EnsureDisclaimer appends the disclaimer as its own paragraph unless the text
// already carries it.
func EnsureDisclaimer(text string) string {
	text = strings.TrimSpace(text)
	if disclaimerPattern.MatchString(text) {
		return text
	}
	if text == "" {
		return Disclaimer
	}
	return text + "\n\n" + Disclaimer
}
