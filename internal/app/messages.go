package app

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"
)

const tickInterval = 100 * time.Millisecond

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type sendResultMsg struct {
	sessionID string
	err       error
}

type replyResultMsg struct {
	requestID string
	err       error
}

type abortResultMsg struct {
	sessionID string
	err       error
}

type resyncDoneMsg struct{}

func sendMessageCmd(api SessionAPI, sessionID, text string) tea.Cmd {
	return func() tea.Msg {
		err := api.SendMessage(context.Background(), sessionID, text)
		return sendResultMsg{sessionID: sessionID, err: err}
	}
}

func replyPermissionCmd(api SessionAPI, requestID, response string) tea.Cmd {
	return func() tea.Msg {
		err := api.ReplyPermission(context.Background(), requestID, response)
		return replyResultMsg{requestID: requestID, err: err}
	}
}

func answerQuestionCmd(api SessionAPI, requestID, answer string) tea.Cmd {
	return func() tea.Msg {
		err := api.AnswerQuestion(context.Background(), requestID, answer)
		return replyResultMsg{requestID: requestID, err: err}
	}
}

func abortSessionCmd(api SessionAPI, sessionID string) tea.Cmd {
	return func() tea.Msg {
		err := api.AbortSession(context.Background(), sessionID)
		return abortResultMsg{sessionID: sessionID, err: err}
	}
}

func resyncCmd(resync func(context.Context)) tea.Cmd {
	return func() tea.Msg {
		resync(context.Background())
		return resyncDoneMsg{}
	}
}
