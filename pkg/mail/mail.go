package mail

import (
	"fmt"

	"DietServer/config"

	"gopkg.in/gomail.v2"
)

// Sender SMTP 邮件发送器。
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender 创建邮件发送器。
func NewSender(cfg config.MailConfig) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendVerifyCode 发送注册验证码邮件。
func (s *Sender) SendVerifyCode(to, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "DietServer 注册验证码")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>你的注册验证码是 <b>%s</b>，5 分钟内有效。</p><p>如果不是你本人操作，请忽略本邮件。</p>", code))

	return s.dialer.DialAndSend(m)
}
