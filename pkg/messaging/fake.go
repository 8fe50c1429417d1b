package messaging

import (
	"context"
	"sync"
)

// SentMessage records one delivery made through a recorder fake.
type SentMessage struct {
	To           string
	Text         string
	TemplateName string
	TemplateID   string
	Subject      string
}

// RecorderAPI is a WhatsAppAPI that records sends instead of delivering.
type RecorderAPI struct {
	mu       sync.Mutex
	Messages []SentMessage
	Err      error
}

func (r *RecorderAPI) SendText(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	r.Messages = append(r.Messages, SentMessage{To: to, Text: text})

	return nil
}

func (r *RecorderAPI) SendTemplate(_ context.Context, to, templateName, templateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	r.Messages = append(r.Messages, SentMessage{To: to, TemplateName: templateName, TemplateID: templateID})

	return nil
}

// RecorderEmail is an EmailSender that records sends instead of delivering.
type RecorderEmail struct {
	mu       sync.Mutex
	Messages []SentMessage
	Err      error
}

func (r *RecorderEmail) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	r.Messages = append(r.Messages, SentMessage{To: to, Subject: subject, Text: body})

	return nil
}
