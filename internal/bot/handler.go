package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gooji/deployer/pkg/api/client"
	"github.com/gooji/deployer/pkg/validate"
)

// Reply texts.
const (
	MsgUsage         = "Please provide your email. Usage: /signin your.email@example.com"
	MsgInvalidEmail  = "Invalid email format. Please try again."
	MsgProcessing    = "Processing your request..."
	MsgUnknown       = "Unknown command. Send /help to see what I can do."
	msgHelp          = "Send /signin your.email@example.com to create a Gooji account.\nYour username and password will be sent back here."
	msgUnknownFailed = "An unknown error occurred."
)

// Registrar creates accounts on the backend.
type Registrar interface {
	Register(ctx context.Context, botSecret, email string) (client.Credentials, error)
}

// Handler turns chat commands into backend calls.
type Handler struct {
	registrar Registrar
	secret    string
	loginURL  string
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(registrar Registrar, secret, loginURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registrar: registrar,
		secret:    secret,
		loginURL:  loginURL,
		logger:    logger,
	}
}

// HandleCommand runs command with its argument string and sends each reply
// through reply, in order.
func (h *Handler) HandleCommand(ctx context.Context, command, args string, reply func(string)) {
	switch strings.ToLower(command) {
	case "signin":
		h.signin(ctx, args, reply)
	case "start", "help":
		reply(msgHelp)
	default:
		reply(MsgUnknown)
	}
}

func (h *Handler) signin(ctx context.Context, args string, reply func(string)) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		reply(MsgUsage)
		return
	}
	email := fields[0]
	if !validate.IsEmail(email) {
		reply(MsgInvalidEmail)
		return
	}

	reply(MsgProcessing)

	creds, err := h.registrar.Register(ctx, h.secret, email)
	if err != nil {
		h.logger.Warn("registration request failed", "error", err)
		reply(failureMessage(err))
		return
	}
	h.logger.Info("account registered via bot", "username", creds.Username)
	reply(successMessage(creds, h.loginURL))
}

func successMessage(creds client.Credentials, loginURL string) string {
	var b strings.Builder
	b.WriteString("✅ Signin successful!\n\n")
	b.WriteString("Here are your account details to login on the Gooji website:\n\n")
	fmt.Fprintf(&b, "👤 Username: %s\n", creds.Username)
	fmt.Fprintf(&b, "🔑 Password: %s\n\n", creds.Password)
	b.WriteString("You can change your username after logging in.\n")
	fmt.Fprintf(&b, "Login here: %s", loginURL)
	return b.String()
}

func failureMessage(err error) string {
	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = msgUnknownFailed
		}
		return "❌ Registration failed: " + msg
	}
	return "❌ Could not connect to the server. Please try again later. Error: " + err.Error()
}
