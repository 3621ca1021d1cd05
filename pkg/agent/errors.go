package agent

import (
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// User-facing messages for the degraded terminal states. Provider errors are
// never auto-retried; each request surfaces at most one of these.
const (
	MsgMissingCredential = "I'm not connected to a language model right now because no API credential is configured. Set OPENAI_API_KEY or ANTHROPIC_API_KEY and try again."
	MsgOverloaded        = "The assistant is handling too many requests right now. Please try again in a moment."
	MsgBadRequest        = "There was an issue with the information provided. Please rephrase your request and try again."
	MsgGeneric           = "Something went wrong while generating a response. Please try again."
	MsgMaxIterations     = "I've reached the maximum number of tool calls allowed for this request."
)

// ErrorClass categorizes a provider failure
type ErrorClass string

const (
	ErrorOverloaded ErrorClass = "overloaded"
	ErrorBadRequest ErrorClass = "bad_request"
	ErrorGeneric    ErrorClass = "generic"
)

// ClassifyProviderError maps a completion API error to a class and the
// user-facing message for it.
func ClassifyProviderError(err error) (ErrorClass, string) {
	if err == nil {
		return ErrorGeneric, MsgGeneric
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return classifyStatus(openaiErr.StatusCode)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return classifyStatus(anthropicErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "overloaded"), strings.Contains(msg, "503"):
		return ErrorOverloaded, MsgOverloaded
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalid request"):
		return ErrorBadRequest, MsgBadRequest
	default:
		return ErrorGeneric, MsgGeneric
	}
}

func classifyStatus(status int) (ErrorClass, string) {
	switch {
	case status == 429 || status == 503 || status == 529:
		return ErrorOverloaded, MsgOverloaded
	case status == 400 || status == 422:
		return ErrorBadRequest, MsgBadRequest
	default:
		return ErrorGeneric, MsgGeneric
	}
}
