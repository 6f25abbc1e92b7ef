package notification

import (
	"fmt"
	"net/smtp"

	"github.com/raykavin/backnrun/pkg/core"
)

// Mail implements core.Notifier over SMTP, a secondary channel alongside
// Telegram for operators who want trade/error alerts in their inbox.
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
	log               core.Logger
}

// MailParams contains all parameters needed to initialize a Mail instance
type MailParams struct {
	SMTPServerPort    int
	SMTPServerAddress string
	To                string
	From              string
	Password          string
}

// NewMail creates a new Mail instance with the provided parameters
func NewMail(params MailParams, log core.Logger) Mail {
	return Mail{
		from:              params.From,
		to:                params.To,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		log:               log,
		auth: smtp.PlainAuth(
			"",
			params.From,
			params.Password,
			params.SMTPServerAddress,
		),
	}
}

// Notify sends an email notification with the given text
func (m Mail) Notify(text string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	message := fmt.Sprintf(
		`To: "User" <%s>
From: "backnrun" <%s>
%s`,
		m.to,
		m.from,
		text,
	)

	err := smtp.SendMail(
		serverAddress,
		m.auth,
		m.from,
		[]string{m.to},
		[]byte(message),
	)

	if err != nil {
		m.log.Errorf("notification/mail: send email: %v", err)
	}
}

// OnTrade sends a notification for every committed fill (spec §7: every
// open, partial-close, averaging, and full close produces one notification).
func (m Mail) OnTrade(trade core.TradeRecord) {
	title := fmt.Sprintf("%s %s", trade.Symbol, trade.Side)
	message := fmt.Sprintf(
		"Subject: %s\nPrice: %.8f\nQuantity: %.8f\nRealized PnL: %.8f\nAt: %s",
		title, trade.Price, trade.Quantity, trade.RealizedPnL, trade.At,
	)
	m.Notify(message)
}

// OnError sends an error notification for symbol.
func (m Mail) OnError(symbol string, err error) {
	message := fmt.Sprintf("Subject: ERROR - %s\n%s", symbol, err)
	m.Notify(message)
}
