// Package webhook renders notifications into Discord webhook messages and
// posts them.
package webhook

// Message is the JSON body of a Discord "execute webhook" request.
type Message struct {
	Content   string  `json:"content,omitempty"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title     string       `json:"title,omitempty"`
	Color     int          `json:"color,omitempty"`
	Thumbnail *EmbedImage  `json:"thumbnail,omitempty"`
	Image     *EmbedImage  `json:"image,omitempty"`
	Fields    []EmbedField `json:"fields,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
