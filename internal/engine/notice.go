package engine

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a transient, non-fatal message for the user. Collaborator failures end up
// here instead of escaping the engine.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

func (n Notice) String() string {
	if n.Message == "" {
		return n.Title
	}
	return n.Title + ": " + n.Message
}

const maxNotices = 32

func (e *Engine) notify(level Level, title, message string, err error) {
	if err != nil && message == "" {
		message = err.Error()
	}
	e.notices = append(e.notices, Notice{Level: level, Title: title, Message: message, Err: err})
	if len(e.notices) > maxNotices {
		e.notices = append([]Notice(nil), e.notices[len(e.notices)-maxNotices:]...)
	}
}

func (e *Engine) fail(title string, err error) {
	e.notify(LevelError, title, "", err)
}

// Notices returns the queued notices without consuming them.
func (e *Engine) Notices() []Notice {
	return append([]Notice(nil), e.notices...)
}

// TakeNotices returns and clears the queued notices.
func (e *Engine) TakeNotices() []Notice {
	out := e.notices
	e.notices = nil
	return out
}
