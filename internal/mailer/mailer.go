// Package mailer delivers the rendered brief over SMTP. Delivery is
// best-effort: missing credentials skip the send with a log line, and a
// send failure never invalidates the run's artifacts.
package mailer

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds the SMTP settings. Credentials come from the environment.
type Config struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
	UserEnvVar string   `yaml:"user_env_var"`
	PassEnvVar string   `yaml:"pass_env_var"`
}

// DefaultConfig returns SMTP settings pointed at a local relay.
func DefaultConfig() *Config {
	return &Config{
		Host:       "smtp.gmail.com",
		Port:       587,
		UserEnvVar: "MACROBRIEF_SMTP_USER",
		PassEnvVar: "MACROBRIEF_SMTP_PASS",
	}
}

// LoadConfig reads mail settings from a YAML file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailer config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mailer config: %w", err)
	}
	return cfg, nil
}

// Mailer sends HTML mail.
type Mailer struct {
	cfg *Config
	log zerolog.Logger

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New wires a mailer.
func New(cfg *Config, log zerolog.Logger) *Mailer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Mailer{cfg: cfg, log: log.With().Str("component", "mailer").Logger(), send: smtp.SendMail}
}

// Send delivers one HTML brief. Returns (false, nil) when delivery was
// skipped for lack of credentials or recipients.
func (m *Mailer) Send(subject string, htmlBody []byte) (bool, error) {
	user := os.Getenv(m.cfg.UserEnvVar)
	pass := os.Getenv(m.cfg.PassEnvVar)
	if user == "" || pass == "" {
		m.log.Info().Msg("SMTP credentials absent, mail delivery skipped")
		return false, nil
	}
	if len(m.cfg.To) == 0 {
		m.log.Info().Msg("no recipients configured, mail delivery skipped")
		return false, nil
	}

	from := m.cfg.From
	if from == "" {
		from = user
	}

	msg := buildMessage(from, m.cfg.To, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", user, pass, m.cfg.Host)

	if err := m.send(addr, auth, from, m.cfg.To, msg); err != nil {
		return false, fmt.Errorf("failed to send mail: %w", err)
	}
	m.log.Info().Int("recipients", len(m.cfg.To)).Str("subject", subject).Msg("brief delivered")
	return true, nil
}

func buildMessage(from string, to []string, subject string, htmlBody []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.Write(htmlBody)
	return []byte(b.String())
}
