package controller

type State int

const (
	Idle State = iota
	Capturing
	Finalizing
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Finalizing:
		return "finalizing"
	case AwaitingResponse:
		return "awaiting_response"
	}
	return "unknown"
}

type Action int

const (
	ActionReplay Action = iota
	ActionVoice
	ActionShare
)

func (a Action) String() string {
	switch a {
	case ActionReplay:
		return "replay"
	case ActionVoice:
		return "voice"
	case ActionShare:
		return "share"
	}
	return "unknown"
}

const (
	StatusIdle      = "Jarvis is standing by. Tap when you’re ready."
	StatusListening = "Jarvis is listening…"
	StatusAnalyzing = "Jarvis is analyzing your request…"

	MsgMicUnavailable = "Jarvis needs microphone access to help. Please enable mic permissions."
	MsgSnagPrefix     = "Jarvis hit a snag: "
	MsgAutoplayFailed = "Response ready – tap replay to listen."
	MsgReplayFailed   = "Unable to play audio automatically. Tap replay again."
	MsgVoiceSoon      = "Voice customization coming soon."
	MsgShareFailed    = "Sharing cancelled."
	MsgCopied         = "Transcript copied to clipboard."

	ShareTitle = "Jarvis Conversation"
)
