package errors

import "net/http"

// ErrorCode identifies an error across the API.
type ErrorCode int

// Codes are grouped by range:
//
//	10000-10999 common
//	12000-12999 problems and test data
//	13000-13999 submissions and judging
//	14000-14999 leaderboard
const (
	Success ErrorCode = 10000

	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007

	DatabaseError ErrorCode = 10100
	CacheError    ErrorCode = 10200

	ValidationFailed ErrorCode = 10300

	StorageError    ErrorCode = 10400
	MQPublishFailed ErrorCode = 10401

	ProblemNotFound  ErrorCode = 12000
	TestCaseNotFound ErrorCode = 12100
	TestCaseInvalid  ErrorCode = 12102

	CodeTooLarge   ErrorCode = 13002
	JudgeQueueFull ErrorCode = 13100

	// Per-test failure classes, carried on each graded test outcome.
	JudgeSystemError    ErrorCode = 13101
	WrongAnswer         ErrorCode = 13102
	RuntimeError        ErrorCode = 13103
	TimeLimitExceeded   ErrorCode = 13104
	OutputLimitExceeded ErrorCode = 13106

	InputTransformFailed ErrorCode = 13110
	CodeTransformFailed  ErrorCode = 13111

	LeaderboardLoadFailed    ErrorCode = 14201
	LeaderboardPersistFailed ErrorCode = 14202
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service temporarily unavailable",

	DatabaseError:    "Database error",
	CacheError:       "Cache error",
	ValidationFailed: "Validation failed",
	StorageError:     "Object storage error",
	MQPublishFailed:  "Failed to publish message",

	ProblemNotFound:  "Problem not found",
	TestCaseNotFound: "Test case not found",
	TestCaseInvalid:  "Invalid test case format",

	CodeTooLarge:         "Code is too large",
	JudgeQueueFull:       "Judge queue is full, please try again later",
	JudgeSystemError:     "Judge system error",
	WrongAnswer:          "Wrong answer",
	RuntimeError:         "Runtime error",
	TimeLimitExceeded:    "Time limit exceeded",
	OutputLimitExceeded:  "Output limit exceeded",
	InputTransformFailed: "Failed to transform test input",
	CodeTransformFailed:  "Failed to transform submission code",

	LeaderboardLoadFailed:    "Failed to load leaderboard",
	LeaderboardPersistFailed: "Failed to persist leaderboard",
}

// Message returns the default text for c.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps c to the status the gin layer answers with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return http.StatusOK
	case NotFound, ProblemNotFound, TestCaseNotFound:
		return http.StatusNotFound
	case TooManyRequests, JudgeQueueFull:
		return http.StatusTooManyRequests
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case InvalidParams, ValidationFailed, CodeTooLarge:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
