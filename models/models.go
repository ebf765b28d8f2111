package models

import (
	"strings"
	"time"
)

// PolicyType is the category of a legal document.
type PolicyType string

const (
	PolicyTypePrivacy PolicyType = "privacy"
	PolicyTypeTerms   PolicyType = "terms"
)

func (t PolicyType) Valid() bool {
	return t == PolicyTypePrivacy || t == PolicyTypeTerms
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Visibility controls who can see a chat.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

type User struct {
	ID                string    `json:"id"`
	BrowserID         string    `json:"browser_id"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	PasswordHash      string    `json:"-"`
	NumberOfSummaries int       `json:"number_of_summaries"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Policy is a versioned legal document. (Hostname, Type, Version) is unique.
type Policy struct {
	ID            string     `json:"id"`
	Hostname      string     `json:"hostname"`
	Type          PolicyType `json:"type"`
	Version       string     `json:"version"`
	Link          string     `json:"link"`
	Content       string     `json:"content,omitempty"`
	DatePublished string     `json:"date_published"`
	Company       string     `json:"company,omitempty"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Chat struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	UserID        string     `json:"user_id"`
	Visibility    Visibility `json:"visibility"`
	TraceID       string     `json:"trace_id,omitempty"`
	ObservationID string     `json:"observation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Part is a typed fragment of message content.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Attachment struct {
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

type Message struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chat_id"`
	Role        Role         `json:"role"`
	Parts       []Part       `json:"parts"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TextParts wraps plain text as a single text part.
func TextParts(text string) []Part {
	return []Part{{Type: "text", Text: text}}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination derives page counters from a total row count.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

type ChatPage struct {
	Chats      []Chat     `json:"chats"`
	Pagination Pagination `json:"pagination"`
}
