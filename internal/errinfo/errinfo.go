package errinfo

import (
	"errors"
	"fmt"
)

// ErrorInfo is the structured error payload returned to tool callers.
type ErrorInfo struct {
	ErrorCode string   `json:"error_code"`
	Phase     string   `json:"phase,omitempty"`
	Retryable bool     `json:"retryable"`
	Actions   []string `json:"actions,omitempty"`
	AgentID   string   `json:"agent_id,omitempty"`
	ProjectID string   `json:"project_id,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

const (
	CodeConfigurationInvalid = "CONFIGURATION_INVALID"
	CodeProjectNotFound      = "PROJECT_NOT_FOUND"
	CodePersistenceFailed    = "PERSISTENCE_FAILED"
	CodeExecutorFailed       = "EXECUTOR_FAILED"
	CodeAgentLocked          = "AGENT_LOCKED"
	CodeAgentRunning         = "AGENT_RUNNING"
	CodeUnknownAgent         = "UNKNOWN_AGENT"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthenticated      = "UNAUTHENTICATED"
)

const (
	ActionRetry      = "retry"
	ActionInitialize = "initialize_project"
	ActionRunFirst   = "run_prerequisites"
	ActionWait       = "wait_for_running_agent"
)

const (
	PhaseCatalog = "catalog"
	PhaseStore   = "store"
	PhaseExecute = "execute"
	PhaseSession = "session"
	PhaseAuth    = "auth"
)

// Error pairs an ErrorInfo with the underlying cause.
type Error struct {
	Info ErrorInfo
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Info.ErrorCode
	if e.Info.Detail != "" {
		msg += ": " + e.Info.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Info: ErrorInfo{ErrorCode: X}})
// works without comparing causes.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return other.Info.ErrorCode == e.Info.ErrorCode
}

// From extracts the ErrorInfo carried by err. Errors without one are reported as
// non-retryable failures in the given phase.
func From(err error, phase string) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	var typed *Error
	if errors.As(err, &typed) {
		info := typed.Info
		if info.Detail == "" && typed.Err != nil {
			info.Detail = typed.Err.Error()
		}
		return info
	}
	return ErrorInfo{ErrorCode: CodeValidationFailed, Phase: phase, Detail: err.Error()}
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		return false
	}
	return typed.Info.ErrorCode == code
}

func ConfigurationInvalid(detail string) *Error {
	return &Error{Info: ErrorInfo{
		ErrorCode: CodeConfigurationInvalid,
		Phase:     PhaseCatalog,
		Retryable: false,
		Detail:    detail,
	}}
}

func ProjectNotFound(projectID string, cause error) *Error {
	return &Error{
		Info: ErrorInfo{
			ErrorCode: CodeProjectNotFound,
			Phase:     PhaseStore,
			Retryable: false,
			Actions:   []string{ActionInitialize},
			ProjectID: projectID,
		},
		Err: cause,
	}
}

func PersistenceFailed(op string, cause error) *Error {
	return &Error{
		Info: ErrorInfo{
			ErrorCode: CodePersistenceFailed,
			Phase:     PhaseStore,
			Retryable: true,
			Actions:   []string{ActionRetry},
			Detail:    op,
		},
		Err: cause,
	}
}

func ExecutorFailed(agentID, detail string, cause error) *Error {
	return &Error{
		Info: ErrorInfo{
			ErrorCode: CodeExecutorFailed,
			Phase:     PhaseExecute,
			Retryable: true,
			Actions:   []string{ActionRetry},
			AgentID:   agentID,
			Detail:    detail,
		},
		Err: cause,
	}
}

func AgentLocked(agentID string, blockedBy []string) *Error {
	return &Error{Info: ErrorInfo{
		ErrorCode: CodeAgentLocked,
		Phase:     PhaseSession,
		Retryable: false,
		Actions:   []string{ActionRunFirst},
		AgentID:   agentID,
		Detail:    fmt.Sprintf("requires %v", blockedBy),
	}}
}

func AgentRunning(running string) *Error {
	return &Error{Info: ErrorInfo{
		ErrorCode: CodeAgentRunning,
		Phase:     PhaseSession,
		Retryable: true,
		Actions:   []string{ActionWait},
		AgentID:   running,
		Detail:    running + " is still running",
	}}
}

func UnknownAgent(agentID string) *Error {
	return &Error{Info: ErrorInfo{
		ErrorCode: CodeUnknownAgent,
		Phase:     PhaseSession,
		Retryable: false,
		AgentID:   agentID,
	}}
}

func ValidationFailed(phase, detail string) *Error {
	return &Error{Info: ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}}
}

func Unauthenticated(detail string) *Error {
	return &Error{Info: ErrorInfo{
		ErrorCode: CodeUnauthenticated,
		Phase:     PhaseAuth,
		Retryable: false,
		Detail:    detail,
	}}
}
