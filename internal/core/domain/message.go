package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultStoreName = "ByteFood"
	outboundBaseURL  = "https://wa.me/"
	mapsBaseURL      = "https://www.google.com/maps?q="
)

// MessageInput is everything the outbound message is built from besides the order.
type MessageInput struct {
	StoreName     string
	Currency      string
	Address       string
	Instructions  string
	Location      *Location
	PaymentMethod PaymentMethod
}

// ComposeMessage renders the order sentence and returns it percent-encoded.
// An empty order yields "" which callers treat as nothing to send.
func ComposeMessage(order Order, in MessageInput) string {
	text := ComposeMessageText(order, in)
	if text == "" {
		return ""
	}
	return EncodeURIComponent(text)
}

// ComposeMessageText renders the order sentence before encoding.
func ComposeMessageText(order Order, in MessageInput) string {
	if order.IsEmpty() {
		return ""
	}

	store := in.StoreName
	if store == "" {
		store = DefaultStoreName
	}
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	products := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		products = append(products, fmt.Sprintf("%s x%d", line.Name, line.Quantity))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s! 🍔 Vengo de la web y quiero realizar el siguiente pedido: %s - Total: %s.",
		store, strings.Join(products, " - "), FormatMoney(currency, order.Total))

	if addr := strings.TrimSpace(in.Address); addr != "" {
		fmt.Fprintf(&b, " Dirección: %s.", addr)
	}
	if ins := strings.TrimSpace(in.Instructions); ins != "" {
		fmt.Fprintf(&b, " Instrucciones: %s.", ins)
	}
	if in.Location != nil {
		fmt.Fprintf(&b, " Mi ubicación es: %s", MapsLink(*in.Location))
	}
	if method := strings.TrimSpace(string(in.PaymentMethod)); method != "" {
		fmt.Fprintf(&b, " Método de pago: %s.", method)
	}

	return b.String()
}

// MapsLink points a map service at loc.
func MapsLink(loc Location) string {
	return mapsBaseURL + formatCoordinate(loc.Latitude) + "," + formatCoordinate(loc.Longitude)
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OutboundMessage is handed to the messaging channel once a send is accepted.
type OutboundMessage struct {
	SessionID   string `json:"session_id"`
	Destination string `json:"destination"`
	Text        string `json:"text"`
	URL         string `json:"url"`
}

// NewOutboundMessage builds the channel link for an already encoded message.
// Destination keeps only digits; without any digits the link is a broadcast.
func NewOutboundMessage(sessionID, destination, encoded string) OutboundMessage {
	digits := DigitsOnly(destination)
	url := outboundBaseURL + "?text=" + encoded
	if digits != "" {
		url = outboundBaseURL + digits + "?text=" + encoded
	}
	return OutboundMessage{
		SessionID:   sessionID,
		Destination: digits,
		Text:        encoded,
		URL:         url,
	}
}

func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent escapes s the way browsers escape a query component:
// everything except A-Z a-z 0-9 and -_.!~*'() is written as UTF-8 %XX.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
