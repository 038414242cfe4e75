package services

import (
	"fmt"
	"net/smtp"
	"os"
)

// Mailer はパスワードリセットメールの送信インターフェースです。
// テストではフェイク実装を注入します。
type Mailer interface {
	SendResetEmail(to, resetURL string) error
}

// SMTPMailer はSMTP経由でメールを送信するMailer実装です。
type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

// SendResetEmail はリセットURLを埋め込んだメールを送信します。
// 送信失敗はそのまま呼び出し元へ返します（ハンドラー側で500になります）。
func (m *SMTPMailer) SendResetEmail(to, resetURL string) error {
	from := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASSWORD")

	smtpHost := os.Getenv("SMTP_HOST")
	if smtpHost == "" {
		smtpHost = "sandbox.smtp.mailtrap.io"
	}
	smtpPort := os.Getenv("SMTP_PORT")
	if smtpPort == "" {
		smtpPort = "2525"
	}

	message := []byte(fmt.Sprintf(
		"Subject: Password Reset\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n"+
			"<p>Click <a href=\"%s\">here</a> to reset your password.</p>", resetURL,
	))

	auth := smtp.PlainAuth("", from, password, smtpHost)
	if err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}
