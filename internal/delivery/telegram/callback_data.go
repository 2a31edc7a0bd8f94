package telegram

import (
	"errors"
	"strconv"
	"strings"
)

// Callback action constants.
const (
	actionAnswer = "ans"
	actionReport = "rep"
	actionLevel  = "lvl"
	actionTopic  = "top"
	actionReset  = "reset"
)

const (
	resetConfirm = "confirm"
	resetCancel  = "cancel"
)

var errBadCallback = errors.New("malformed callback data")

// callbackData represents structured callback data.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

// encode creates callback string.
func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + ":" + strings.Join(cd.Params, ":")
}

// decodeCallback parses callback data string.
func decodeCallback(data string) callbackData {
	parts := strings.Split(data, ":")
	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

// answerCallback is a tap on one option of one gap.
type answerCallback struct {
	ItemID int64
	Gap    int
	Option int
}

func parseAnswerCallback(cd callbackData) (answerCallback, error) {
	if cd.Action != actionAnswer || len(cd.Params) != 3 {
		return answerCallback{}, errBadCallback
	}

	itemID, err1 := strconv.ParseInt(cd.Params[0], 10, 64)
	gap, err2 := strconv.Atoi(cd.Params[1])
	option, err3 := strconv.Atoi(cd.Params[2])
	if err1 != nil || err2 != nil || err3 != nil || itemID < 0 || gap < 0 || option < 0 {
		return answerCallback{}, errBadCallback
	}

	return answerCallback{ItemID: itemID, Gap: gap, Option: option}, nil
}

func parseItemCallback(cd callbackData) (int64, error) {
	if len(cd.Params) != 1 {
		return 0, errBadCallback
	}
	itemID, err := strconv.ParseInt(cd.Params[0], 10, 64)
	if err != nil || itemID < 0 {
		return 0, errBadCallback
	}
	return itemID, nil
}

// singleParam returns the only parameter of cd. An empty parameter is valid.
func singleParam(cd callbackData) (string, error) {
	if len(cd.Params) != 1 {
		return "", errBadCallback
	}
	return cd.Params[0], nil
}

// buildAnswerCallback builds callback data for choosing an option of a gap.
func buildAnswerCallback(itemID int64, gap, option int) string {
	return callbackData{
		Action: actionAnswer,
		Params: []string{
			strconv.FormatInt(itemID, 10),
			strconv.Itoa(gap),
			strconv.Itoa(option),
		},
	}.encode()
}

// buildReportCallback builds callback data for reporting a faulty item.
func buildReportCallback(itemID int64) string {
	return callbackData{
		Action: actionReport,
		Params: []string{strconv.FormatInt(itemID, 10)},
	}.encode()
}

func buildLevelCallback(level string) string {
	return callbackData{Action: actionLevel, Params: []string{level}}.encode()
}

// buildTopicCallback builds callback data for choosing a topic; "" clears it.
func buildTopicCallback(topic string) string {
	return callbackData{Action: actionTopic, Params: []string{topic}}.encode()
}

func buildResetConfirmCallback() string {
	return callbackData{Action: actionReset, Params: []string{resetConfirm}}.encode()
}

func buildResetCancelCallback() string {
	return callbackData{Action: actionReset, Params: []string{resetCancel}}.encode()
}
