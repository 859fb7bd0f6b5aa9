package voice

import "strings"

// Command is the action a transcript asks for.
type Command int

const (
	// Unknown transcripts are ignored.
	Unknown Command = iota
	// StartCamera turns the camera on.
	StartCamera
	// StopCamera turns the camera off.
	StopCamera
)

func (c Command) String() string {
	switch c {
	case StartCamera:
		return "start_camera"
	case StopCamera:
		return "stop_camera"
	default:
		return "unknown"
	}
}

// Trigger phrases, matched against normalized transcripts.
const (
	StartPhrase = "start camera"
	StopPhrase  = "stop camera"
)

// Normalize lowercases s, collapses whitespace runs to single spaces and
// trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Classify maps a transcript to a Command. The start phrase wins when both
// phrases are present.
func Classify(transcript string) Command {
	t := Normalize(transcript)
	switch {
	case strings.Contains(t, StartPhrase):
		return StartCamera
	case strings.Contains(t, StopPhrase):
		return StopCamera
	default:
		return Unknown
	}
}
