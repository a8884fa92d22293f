package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	gomail "gopkg.in/gomail.v2"
)

// Sender delivers one email. Production uses SMTP; tests inject a fake.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail through a single SMTP account
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// Notifier emails a user when a detection run finds nothing.
// Delivery is best effort: a dead mail server never fails the run
// that triggered the alert.
type Notifier struct {
	log        logs.Log
	sender     Sender
	maxRetries int
	retryDelay time.Duration
}

func NewNotifier(log logs.Log, sender Sender) *Notifier {
	return &Notifier{
		log:        log,
		sender:     sender,
		maxRetries: 2,
		retryDelay: 2 * time.Second,
	}
}

// NotifyEmptyDetection tells the user that a run of the given kind found no
// objects. A blank email (anonymous run) is quietly skipped.
func (n *Notifier) NotifyEmptyDetection(email, kind string) {
	if email == "" {
		return
	}
	if n.sender == nil {
		n.log.Infof("Email alerts not configured, skipping empty-detection alert to %v", email)
		return
	}
	subject := "VisionGuard: no objects detected"
	body := fmt.Sprintf(
		"Your %v detection run finished at %v without finding any objects.\n\n"+
			"If you expected detections, check the lighting and framing of your media and try again.\n",
		kind, time.Now().Format("2006-01-02 15:04:05 MST"))

	var err error
	for attempt := 0; ; attempt++ {
		err = n.sender.Send(email, subject, body)
		if err == nil {
			n.log.Infof("Sent empty-detection alert to %v (kind %v)", email, kind)
			return
		}
		if isAuthError(err) {
			// Auth failures are permanent, don't retry
			n.log.Errorf("Empty-detection alert to %v rejected by SMTP auth: %v", email, err)
			return
		}
		if attempt >= n.maxRetries {
			break
		}
		n.log.Warnf("Empty-detection alert to %v failed (attempt %v): %v", email, attempt+1, err)
		time.Sleep(n.retryDelay)
	}
	n.log.Errorf("Empty-detection alert to %v failed after %v attempts: %v", email, n.maxRetries+1, err)
}

// isAuthError recognizes SMTP authentication failures (reply codes 530/534/535)
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"530 ", "534 ", "535 "} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(msg), "auth")
}
