package email

import (
	"fmt"
	"html"
	"strings"
)

// BuildOrderConfirmationBody renders the order-received mail body.
func BuildOrderConfirmationBody(number int64, total string, lines []OrderLine) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>Thanks for your order #%d!</h2>", number))
	b.WriteString("<p>We received your order and will confirm it shortly.</p>")
	b.WriteString("<table border=\"0\" cellpadding=\"4\">")
	b.WriteString("<tr><th align=\"left\">Item</th><th align=\"right\">Qty</th><th align=\"right\">Total</th></tr>")
	for _, line := range lines {
		b.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td align=\"right\">%d</td><td align=\"right\">%s</td></tr>",
			html.EscapeString(line.Label), line.Quantity, html.EscapeString(line.LineTotal)))
	}
	b.WriteString("</table>")
	b.WriteString(fmt.Sprintf("<p><strong>Total: %s</strong></p>", html.EscapeString(total)))
	b.WriteString("</body></html>")
	return b.String()
}

// BuildOrderCancelledBody renders the cancellation mail body.
func BuildOrderCancelledBody(number int64, reason string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>Your order #%d was cancelled</h2>", number))
	if reason != "" {
		b.WriteString(fmt.Sprintf("<p>Reason: %s</p>", html.EscapeString(reason)))
	}
	b.WriteString("<p>If this was unexpected, reply to this mail and we will sort it out.</p>")
	b.WriteString("</body></html>")
	return b.String()
}
