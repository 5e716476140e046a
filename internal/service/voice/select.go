package voice

import (
	"strings"
)

// FallbackLang is forced on utterances when no English voice exists.
const FallbackLang = "en-US"

// Info describes one synthesis voice.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

type voiceRule func(Info) bool

func nameContains(sub string) func(Info) bool {
	return func(v Info) bool { return strings.Contains(v.Name, sub) }
}

func langIs(tag string) func(Info) bool {
	return func(v Info) bool { return strings.EqualFold(v.Lang, tag) }
}

func both(a, b func(Info) bool) voiceRule {
	return func(v Info) bool { return a(v) && b(v) }
}

var selectionRules = []voiceRule{
	func(v Info) bool { return strings.Contains(strings.ToLower(v.Name), "samantha") },
	both(nameContains("Karen"), langIs("en-US")),
	both(nameContains("Daniel"), langIs("en-US")),
	both(nameContains("Daniel"), langIs("en-GB")),
	langIs("en-US"),
	langIs("en-GB"),
}

// English keeps the voices whose locale tag starts with "en-".
func English(voices []Info) []Info {
	out := make([]Info, 0, len(voices))
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en-") {
			out = append(out, v)
		}
	}
	return out
}

// SelectVoice picks the preferred English voice. It returns false when the
// list holds no English voice at all.
func SelectVoice(voices []Info) (Info, bool) {
	english := English(voices)
	if len(english) == 0 {
		return Info{}, false
	}

	for _, rule := range selectionRules {
		for _, v := range english {
			if rule(v) {
				return v, true
			}
		}
	}
	return english[0], true
}
