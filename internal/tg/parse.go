package tg

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pvzzle/txrecorder/internal/coordinator"
	"github.com/pvzzle/txrecorder/internal/ethunits"
)

var (
	reEthAddr = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

	errNotInForm = errors.New("not filling a form")
	errBadAddr   = errors.New("invalid address")
	errBadAmount = errors.New("invalid amount")
)

const (
	msgBadAddr   = "Looks like this is not an address. Expected 0x + 40 hex characters."
	msgBadAmount = "Need a number >= 0 with at most 18 decimals (e.g. 0.01). Try again."
)

func IsEthAddress(s string) bool {
	s = strings.TrimSpace(s)
	return reEthAddr.MatchString(s)
}

type step struct {
	field  coordinator.Field
	next   ChatState
	prompt string
}

var formSteps = map[ChatState]step{
	StateAwaitRecipient: {coordinator.FieldRecipient, StateAwaitAmount, "Amount in ETH (e.g. 0.01):"},
	StateAwaitAmount:    {coordinator.FieldAmount, StateAwaitKeyword, "Keyword (or - to skip):"},
	StateAwaitKeyword:   {coordinator.FieldKeyword, StateAwaitMessage, "Message (or - to skip):"},
	StateAwaitMessage:   {coordinator.FieldMessage, StateIdle, ""},
}

// advance validates input for the current form state and returns the step to apply.
func advance(st ChatState, text string) (step, string, error) {
	s, ok := formSteps[st]
	if !ok {
		return step{}, "", errNotInForm
	}

	text = strings.TrimSpace(text)
	switch st {
	case StateAwaitRecipient:
		if !IsEthAddress(text) {
			return step{}, "", errBadAddr
		}
	case StateAwaitAmount:
		if _, err := ethunits.ParseEther(text); err != nil {
			return step{}, "", errBadAmount
		}
	default:
		if text == "-" {
			text = ""
		}
	}
	return s, text, nil
}
