package http1

// Stage is what the processor is busy with at the moment. It's observable from other
// goroutines, e.g. for the diagnostics of stuck connections.
type Stage uint32

const (
	Idle Stage = iota
	ParsingRequestLine
	ParsingHeaders
	Preparing
	Servicing
	EndingRequest
	Closing
)

var stageNames = [...]string{
	Idle:               "idle",
	ParsingRequestLine: "parsing request line",
	ParsingHeaders:     "parsing headers",
	Preparing:          "preparing",
	Servicing:          "servicing",
	EndingRequest:      "ending request",
	Closing:            "closing",
}

func (s Stage) String() string {
	if int(s) >= len(stageNames) {
		return "unknown"
	}

	return stageNames[s]
}
