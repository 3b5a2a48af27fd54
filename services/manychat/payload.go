package manychat

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"jornada/services/actionlog"
	"jornada/services/participant"
)

var ErrInvalidPayload = errors.New("invalid payload")

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// objects, arrays and booleans carry no usable value
		return nil
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or numeric string; anything else reads as 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

type attachments []actionlog.Attachment

func (a *attachments) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, item := range raw {
		var v struct {
			Type    flexString `json:"type"`
			Mime    flexString `json:"mime"`
			URL     flexString `json:"url"`
			FileURL flexString `json:"fileUrl"`
		}
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		*a = append(*a, actionlog.Attachment{
			Type:    string(v.Type),
			Mime:    string(v.Mime),
			URL:     string(v.URL),
			FileURL: string(v.FileURL),
		})
	}
	return nil
}

type subscriber struct {
	ID          flexString `json:"id"`
	Phone       flexString `json:"phone"`
	PhoneNumber flexString `json:"phone_number"`
	Msisdn      flexString `json:"msisdn"`
	Name        flexString `json:"name"`
	FullName    flexString `json:"fullName"`
}

// message is either an object or a bare text string.
type message struct {
	Text        flexString  `json:"text"`
	Attachments attachments `json:"attachments"`
	Media       attachments `json:"media"`
}

func (m *message) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return (&m.Text).UnmarshalJSON(b)
	}
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	type plain message
	return json.Unmarshal(b, (*plain)(m))
}

type meta struct {
	ProjectID flexString `json:"projectId"`
	DayNumber flexInt    `json:"dayNumber"`
}

type rawPayload struct {
	Subscriber  *subscriber `json:"subscriber"`
	User        *subscriber `json:"user"`
	Message     *message    `json:"message"`
	Text        *message    `json:"text"`
	Attachments attachments `json:"attachments"`
	Meta        *meta       `json:"meta"`
	Metadata    *meta       `json:"metadata"`
	ProjectID   flexString  `json:"projectId"`
	Project     *struct {
		ID flexString `json:"id"`
	} `json:"project"`
	DayNumber flexInt    `json:"dayNumber"`
	Notes     flexString `json:"notes"`
}

// Event is the normalized inbound message.
type Event struct {
	Identity    participant.Identity
	Text        string
	Attachments []actionlog.Attachment
	ProjectID   string
	DayNumber   int
	Notes       string
}

func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// Parse normalizes a chat-bot payload. Field aliases are resolved in order of
// precedence; numbers may arrive as strings.
func Parse(body []byte) (*Event, error) {
	var raw rawPayload
	if len(bytes.TrimSpace(body)) == 0 {
		return &Event{}, nil
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	sub := raw.Subscriber
	if sub == nil {
		sub = raw.User
	}
	if sub == nil {
		sub = &subscriber{}
	}

	msg := raw.Message
	if msg == nil {
		msg = raw.Text
	}
	if msg == nil {
		msg = &message{}
	}

	text := string(msg.Text)
	if text == "" && raw.Text != nil {
		text = string(raw.Text.Text)
	}

	atts := []actionlog.Attachment(msg.Attachments)
	if len(atts) == 0 {
		atts = msg.Media
	}
	if len(atts) == 0 {
		atts = raw.Attachments
	}

	md := raw.Meta
	if md == nil {
		md = raw.Metadata
	}
	if md == nil {
		md = &meta{}
	}

	var projectHint flexString
	if raw.Project != nil {
		projectHint = raw.Project.ID
	}

	day := int(md.DayNumber)
	if day <= 0 {
		day = int(raw.DayNumber)
	}
	if day < 0 {
		day = 0
	}

	return &Event{
		Identity: participant.Identity{
			SubscriberID: string(sub.ID),
			Phone:        firstNonEmpty(sub.Phone, sub.PhoneNumber, sub.Msisdn),
			Name:         firstNonEmpty(sub.Name, sub.FullName),
		},
		Text:        text,
		Attachments: atts,
		ProjectID:   firstNonEmpty(md.ProjectID, raw.ProjectID, projectHint),
		DayNumber:   day,
		Notes:       string(raw.Notes),
	}, nil
}
