package livy

// SessionState is the lifecycle state Livy reports for an interactive session.
type SessionState string

const (
	SessionNotStarted   SessionState = "not_started"
	SessionStarting     SessionState = "starting"
	SessionIdle         SessionState = "idle"
	SessionBusy         SessionState = "busy"
	SessionShuttingDown SessionState = "shutting_down"
	SessionError        SessionState = "error"
	SessionDead         SessionState = "dead"
	SessionKilled       SessionState = "killed"
	SessionSuccess      SessionState = "success"
)

// Terminal reports whether the session can no longer accept statements.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionShuttingDown, SessionError, SessionDead, SessionKilled, SessionSuccess:
		return true
	}
	return false
}

// StatementState is the lifecycle state of a submitted statement.
type StatementState string

const (
	StatementWaiting    StatementState = "waiting"
	StatementRunning    StatementState = "running"
	StatementAvailable  StatementState = "available"
	StatementFailed     StatementState = "error"
	StatementCancelling StatementState = "cancelling"
	StatementCancelled  StatementState = "cancelled"
)

// Done reports whether the statement will not change state again.
func (s StatementState) Done() bool {
	return s == StatementAvailable || s == StatementFailed || s == StatementCancelled
}

// SessionRequest is the body of POST /sessions.
type SessionRequest struct {
	Kind           string            `json:"kind,omitempty"`
	Name           string            `json:"name,omitempty"`
	ProxyUser      string            `json:"proxyUser,omitempty"`
	DriverMemory   string            `json:"driverMemory,omitempty"`
	ExecutorMemory string            `json:"executorMemory,omitempty"`
	ExecutorCores  int               `json:"executorCores,omitempty"`
	NumExecutors   int               `json:"numExecutors,omitempty"`
	Conf           map[string]string `json:"conf,omitempty"`
}

// Session is an interactive Livy session.
type Session struct {
	ID        int          `json:"id"`
	AppID     string       `json:"appId,omitempty"`
	Owner     string       `json:"owner,omitempty"`
	ProxyUser string       `json:"proxyUser,omitempty"`
	Kind      string       `json:"kind,omitempty"`
	State     SessionState `json:"state"`
	Log       []string     `json:"log,omitempty"`
}

// Statement is one block of code run in a session.
type Statement struct {
	ID       int              `json:"id"`
	Code     string           `json:"code"`
	State    StatementState   `json:"state"`
	Output   *StatementOutput `json:"output,omitempty"`
	Progress float64          `json:"progress"`
}

// StatementOutput is the result of a finished statement.
type StatementOutput struct {
	Status         string         `json:"status"`
	ExecutionCount int            `json:"execution_count"`
	Data           map[string]any `json:"data,omitempty"`
	EName          string         `json:"ename,omitempty"`
	EValue         string         `json:"evalue,omitempty"`
	Traceback      []string       `json:"traceback,omitempty"`
}

// Text returns the text/plain payload.
func (o *StatementOutput) Text() string {
	if o == nil {
		return ""
	}
	s, _ := o.Data["text/plain"].(string)
	return s
}

func (o *StatementOutput) err() error {
	if o == nil || o.Status != "error" {
		return nil
	}
	return &StatementError{Name: o.EName, Value: o.EValue, Traceback: o.Traceback}
}

type statementRequest struct {
	Code string `json:"code"`
	Kind string `json:"kind,omitempty"`
}
