// internal/model/media.go
package model

// Media is a reference to an attachment, fetched at send time.
// Type "text" or an empty URL means no attachment.
type Media struct {
	Type    string `db:"media_type" json:"type"`
	URL     string `db:"media_url" json:"url"`
	Caption string `db:"media_caption" json:"caption,omitempty"`
	Mime    string `json:"mime,omitempty"`
}

func (m *Media) HasAttachment() bool {
	return m != nil && m.Type != "" && m.Type != "text" && m.URL != ""
}
