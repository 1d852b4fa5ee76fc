package app

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/api"
	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/ui/login"
)

// noStoredSessionMsg is sent at startup when the keyring holds no token.
type noStoredSessionMsg struct{}

// sessionStartedMsg is sent once a token has been accepted.
type sessionStartedMsg struct {
	user *api.User

	// offline is true when the session check could not reach the API and
	// the stored token was used as is.
	offline bool

	// baseURL is set when sign in switched the API root.
	baseURL string
}

// sessionFailedMsg is sent when a sign in attempt was rejected.
type sessionFailedMsg struct {
	message string
}

// restoreSession loads the stored token and checks it against the API.
// A rejected token is removed; an unreachable API still starts the session
// so reminders can run from cached data.
func (m *Model) restoreSession() tea.Cmd {
	tokens := m.tokens
	session := m.session
	logger := m.logger

	return func() tea.Msg {
		token, err := tokens.Token()
		if err != nil || token == "" {
			return noStoredSessionMsg{}
		}

		session.SetToken(token)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		user, err := session.Me(ctx)
		if err == nil {
			return sessionStartedMsg{user: user}
		}

		if api.IsAuthError(err) {
			session.SetToken("")
			if clearErr := tokens.ClearToken(); clearErr != nil {
				logger.Warn("removing rejected token", zap.Error(clearErr))
			}
			return sessionFailedMsg{message: "Your session has expired. Please sign in again."}
		}

		logger.Warn("session check failed, continuing offline", zap.Error(err))
		return sessionStartedMsg{offline: true}
	}
}

// signIn verifies submitted credentials and stores the token. A changed
// base URL is written back to the config file.
func (m *Model) signIn(msg login.SubmitMsg) tea.Cmd {
	m.loginView.SetBusy(true)

	tokens := m.tokens
	session := m.session
	logger := m.logger
	configPath := m.configPath
	cfg := *m.cfg
	previousURL := session.BaseURL()

	return func() tea.Msg {
		session.SetBaseURL(msg.BaseURL)
		session.SetToken(msg.Token)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		user, err := session.Me(ctx)
		if err != nil {
			session.SetToken("")
			session.SetBaseURL(previousURL)
			if api.IsAuthError(err) {
				return sessionFailedMsg{message: "The API rejected that token."}
			}
			return sessionFailedMsg{message: "Could not reach the API: " + err.Error()}
		}

		if err := tokens.SetToken(msg.Token); err != nil {
			logger.Warn("storing token in keyring", zap.Error(err))
		}

		started := sessionStartedMsg{user: user}
		if !strings.EqualFold(msg.BaseURL, strings.TrimRight(previousURL, "/")) {
			started.baseURL = msg.BaseURL
			if configPath != "" {
				cfg.API.BaseURL = msg.BaseURL
				if err := model.SaveConfig(configPath, &cfg); err != nil {
					logger.Warn("saving base URL to config", zap.Error(err))
				}
			}
		}
		return started
	}
}

// startSession switches to the today view and starts the poller.
func (m *Model) startSession(msg sessionStartedMsg) tea.Cmd {
	m.signedIn = true
	m.user = msg.user
	m.currentView = ViewToday
	m.loginView.SetBusy(false)
	if msg.baseURL != "" {
		m.cfg.API.BaseURL = msg.baseURL
	}

	switch {
	case msg.offline:
		m.setErrorText("API unreachable, using saved data until it responds")
	case msg.user != nil && msg.user.Name != "":
		m.setStatus("Signed in as " + msg.user.Name)
	}

	m.logger.Info("session started", zap.Bool("offline", msg.offline))

	cmd := m.poller.Start()
	if cmd == nil || m.waiting {
		return nil
	}
	m.waiting = true
	return cmd
}

// signOut ends the session: polling stops, the stored token is removed and
// the active reminder is dismissed.
func (m *Model) signOut() tea.Cmd {
	m.poller.Stop()

	if err := m.tokens.ClearToken(); err != nil {
		m.logger.Warn("removing token from keyring", zap.Error(err))
	}
	m.session.SetToken("")
	m.inbox.ClearActive()

	m.signedIn = false
	m.user = nil
	m.lastResult = nil
	m.currentView = ViewLogin
	m.setStatus("Signed out")

	m.logger.Info("session ended")
	return m.loginView.Start("")
}
