package notify

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Group is the pub/sub group every notification is published to.
const Group = "notifications"

// MessageType is the type carried by every published message.
const MessageType = "receive"

// DefaultKey is the message key used when Notify is not given one.
const DefaultKey = "notification"

// Verb classifies a notification.
type Verb string

const (
	VerbLike    Verb = "L"
	VerbComment Verb = "C"
	VerbReply   Verb = "R"
	VerbFollow  Verb = "F"
)

var verbText = map[Verb]string{
	VerbLike:    "liked",
	VerbComment: "commented on",
	VerbReply:   "replied to",
	VerbFollow:  "followed",
}

// String returns the verb as it reads in a message.
func (v Verb) String() string {
	if s, ok := verbText[v]; ok {
		return s
	}
	return string(v)
}

// Notification is one stored notification for one recipient.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:notification"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	ActorID     int64     `bun:"actor_id,notnull"`
	RecipientID int64     `bun:"recipient_id,notnull"`
	Verb        Verb      `bun:"verb,notnull"`
	ActionType  string    `bun:"action_type,notnull,default:''"`
	ActionID    int64     `bun:"action_id,notnull,default:0"`
	Unread      bool      `bun:"unread,notnull,default:true"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Actor is the user that caused a notification.
type Actor struct {
	ID   int64
	Name string
}

// Target is the object a notification is about.
type Target struct {
	Type string
	ID   int64
	Name string
}

func (t Target) idValue() string {
	if t.ID == 0 {
		return ""
	}
	return strconv.FormatInt(t.ID, 10)
}

// Message is the payload published to Group.
type Message struct {
	Type       string  `msgpack:"type" json:"type"`
	Key        string  `msgpack:"key" json:"key"`
	ActorName  string  `msgpack:"actor_name" json:"actor_name"`
	IDValue    string  `msgpack:"id_value" json:"id_value"`
	Msg        string  `msgpack:"msg" json:"msg"`
	Recipients []int64 `msgpack:"recipients" json:"recipients"`
}

// For reports whether userID is one of the message recipients.
func (m Message) For(userID int64) bool {
	for _, r := range m.Recipients {
		if r == userID {
			return true
		}
	}
	return false
}

func describe(actor Actor, verb Verb, target Target) string {
	text := actor.Name + " " + verb.String()
	switch {
	case target.Name != "":
		text += " " + target.Name
	case target.Type != "":
		text += " " + target.Type + " " + target.idValue()
	}
	return text
}
