package core

import "strings"

// UtteranceKind classifies a line of chat text.
type UtteranceKind int

const (
	// UtteranceChat is ordinary text.
	UtteranceChat UtteranceKind = iota
	// UtteranceOnline lists the room's connected users to the sender.
	UtteranceOnline
	// UtteranceMute mutes Target in the room.
	UtteranceMute
	// UtteranceUnmute unmutes Target in the room.
	UtteranceUnmute
	// UtteranceKick disconnects Target from the room.
	UtteranceKick
	// UtteranceLockdown toggles admission of new connections.
	UtteranceLockdown
	// UtteranceAssistant is chat that also asks the assistant behind Prefix.
	UtteranceAssistant
)

// Utterance is chat text parsed once at the router boundary.
type Utterance struct {
	Kind   UtteranceKind
	Text   string
	Target string
	Prefix string
	Prompt string
}

// ParseUtterance classifies text. Moderator-only commands from anyone else
// parse as ordinary chat. prefixes are the configured assistant triggers.
func ParseUtterance(text string, moderator bool, prefixes []string) Utterance {
	u := Utterance{Kind: UtteranceChat, Text: text}

	if text == "/online" {
		u.Kind = UtteranceOnline
		return u
	}

	if moderator {
		switch {
		case strings.HasPrefix(text, "/mute "):
			u.Kind, u.Target = UtteranceMute, commandTarget(text)
			return u
		case strings.HasPrefix(text, "/unmute "):
			u.Kind, u.Target = UtteranceUnmute, commandTarget(text)
			return u
		case strings.HasPrefix(text, "/kick "):
			u.Kind, u.Target = UtteranceKick, commandTarget(text)
			return u
		case strings.HasPrefix(text, "/lockdown"):
			u.Kind = UtteranceLockdown
			return u
		}
	}

	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(text, p) {
			u.Kind = UtteranceAssistant
			u.Prefix = p
			u.Prompt = strings.TrimSpace(text[len(p):])
			return u
		}
	}

	return u
}

// commandTarget is the first argument after the command word, or "".
func commandTarget(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
