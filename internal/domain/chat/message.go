// Package chat is the platform-neutral view of the community chat the shop
// fulfils orders through: messages, embeds, interactive components and forms.
package chat

import "time"

// Brand colours used by the shop's embeds.
const (
	ColorRed   = 0xE74C3C
	ColorGreen = 0x2ECC71
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Thumbnail   string
	Timestamp   time.Time
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

type SelectOption struct {
	Label       string
	Value       string
	Description string
}

type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// Message is what the shop posts or edits in a channel.
type Message struct {
	Content string
	Embeds  []Embed
	Buttons []Button
	Select  *SelectMenu
}

type FormField struct {
	CustomID    string
	Label       string
	Placeholder string
	Required    bool
	MinLength   int
	MaxLength   int
}

// Form is a short modal soliciting text input.
type Form struct {
	CustomID string
	Title    string
	Fields   []FormField
}
