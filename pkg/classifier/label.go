package classifier

import "regexp"

// PlaceholderName is used when no name can be read from a label.
const PlaceholderName = "参加者"

// audioOnPatterns match the "audio is on" phrase of a peer tile label.
// The phrase tells that the participant's audio channel is enabled, not that
// sound is actually flowing: an unmuted but silent participant counts as
// speaking.
var audioOnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`音声はオン`),
	regexp.MustCompile(`(?i)audio is on`),
}

var namePatterns = []*regexp.Regexp{
	// "田中さん、ビデオはオフ、音声はオン、..."
	regexp.MustCompile(`^([^さ]+)さん、`),
	// "Jane Doe, video is off, audio is on, ..."
	regexp.MustCompile(`^([^,]+),`),
}

// IsSpeaking reports whether label says the participant's audio is on.
func IsSpeaking(label string) bool {
	for _, p := range audioOnPatterns {
		if p.MatchString(label) {
			return true
		}
	}
	return false
}

// ExtractName pulls the display name out of a peer tile label, falling back
// to PlaceholderName.
func ExtractName(label string) string {
	for _, p := range namePatterns {
		if m := p.FindStringSubmatch(label); m != nil {
			return m[1]
		}
	}
	return PlaceholderName
}
