package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	assert.True(t, NewSMTP("smtp.example.com", "587", "user", "pass", "").Enabled())
	assert.False(t, NewSMTP("smtp.example.com", "587", "user", "", "").Enabled())
	assert.False(t, NewSMTP("smtp.example.com", "587", "", "", "").Enabled())
}

func TestSendFailsFastWhenDisabled(t *testing.T) {
	m := NewSMTP("smtp.example.com", "587", "", "", "")
	err := m.Send(context.Background(), "hod@example.com", "subject", "plain", "<p>html</p>")
	assert.ErrorContains(t, err, "not configured")
}

func TestNewSMTPDefaultsFromToUsername(t *testing.T) {
	m := NewSMTP("smtp.example.com", "587", "reports@example.com", "pass", "")
	assert.Equal(t, "reports@example.com", m.From)

	m = NewSMTP("smtp.example.com", "587", "reports@example.com", "pass", "noreply@example.com")
	assert.Equal(t, "noreply@example.com", m.From)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("from@example.com", "to@example.com", "Attendance digest", "plain body", "<p>html body</p>"))

	assert.True(t, strings.HasPrefix(msg, "From: from@example.com\r\n"))
	assert.Contains(t, msg, "To: to@example.com\r\n")
	assert.Contains(t, msg, "Subject: Attendance digest\r\n")
	assert.Contains(t, msg, "Content-Type: multipart/alternative; boundary="+boundary)
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, msg, "plain body")
	assert.Contains(t, msg, "<p>html body</p>")
	assert.True(t, strings.HasSuffix(msg, "--"+boundary+"--\r\n"))

	// The plain part precedes the HTML part so clients prefer the HTML one.
	assert.Less(t, strings.Index(msg, "plain body"), strings.Index(msg, "<p>html body</p>"))
}
