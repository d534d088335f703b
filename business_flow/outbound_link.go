package businessflow

import (
	"net/url"
	"strings"

	"github.com/amirphl/humanflow/models"
)

// OutboundLink is a ready-to-open messaging deep link plus the prospect marked as contacted
type OutboundLink struct {
	URL     string          `json:"url"`
	Message string          `json:"message"`
	Contact models.Prospect `json:"contact"`
}

// LinkBuilder renders messages and turns them into messaging deep links
type LinkBuilder struct {
	BaseURL        string
	ContactedLabel string
}

// BuildAndMark renders template for p and returns the deep link with a copy
// of p whose status is the contacted label. Calling it again on the result
// yields the same link.
func (b LinkBuilder) BuildAndMark(template string, p models.Prospect) OutboundLink {
	message := RenderTemplate(template, p)
	base, label := b.BaseURL, b.ContactedLabel
	if base == "" {
		base = "https://wa.me"
	}
	if label == "" {
		label = "Contactado"
	}
	return OutboundLink{
		URL:     strings.TrimRight(base, "/") + "/" + p.Telefono + "?text=" + encodeURIComponent(message),
		Message: message,
		Contact: p.WithEstado(label),
	}
}

// encodeURIComponent escapes like the browser function of the same name:
// spaces become %20 and the marks -_.!~*'() stay literal.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	r := strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*", "%7E", "~")
	return r.Replace(escaped)
}
