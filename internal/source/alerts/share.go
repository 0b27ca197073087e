package alerts

import (
	"net/url"
	"strings"

	"github.com/nhle/climate-alerts/internal/model"
)

const shareFooter = "_Plataforma de Alertas Climáticas Huancavelica_"

// ShareMessage formats an alert for forwarding over a chat app.
func ShareMessage(a model.Alert) string {
	var b strings.Builder
	b.WriteString("*" + a.Title + "*\n\n")
	b.WriteString(a.Description + "\n\n")
	b.WriteString("*Recomendaciones:*\n")
	for _, r := range a.Recommendations {
		b.WriteString("• " + r + "\n")
	}
	b.WriteString("\n" + shareFooter)
	return b.String()
}

// ShareURL returns a WhatsApp link that pre-fills ShareMessage.
func ShareURL(a model.Alert) string {
	return "https://wa.me/?text=" + url.QueryEscape(ShareMessage(a))
}
