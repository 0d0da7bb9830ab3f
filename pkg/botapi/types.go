package botapi

import "encoding/json"

// Update is one element of the getUpdates long-poll response.
type Update struct {
	UpdateId int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message. Only the fields the daemon consumes
// are mapped.
type Message struct {
	MessageId int64     `json:"message_id"`
	From      *User     `json:"from"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text"`
	Caption   string    `json:"caption"`
	Document  *Document `json:"document"`
}

type User struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	Id int64 `json:"id"`
}

// Document is a file attachment. The FileId can be passed back verbatim to
// re-send the same file to another chat.
type Document struct {
	FileId   string `json:"file_id"`
	FileName string `json:"file_name"`
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}
