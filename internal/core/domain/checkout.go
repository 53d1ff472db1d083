package domain

import (
	"regexp"
	"strings"
)

type CheckoutState string

const (
	CheckoutStateEmpty           CheckoutState = "empty"
	CheckoutStateBuilding        CheckoutState = "building"
	CheckoutStateAwaitingPayment CheckoutState = "awaiting_payment"
	CheckoutStatePaymentVerified CheckoutState = "payment_verified"
	CheckoutStateSent            CheckoutState = "sent"
)

func (s CheckoutState) String() string {
	return string(s)
}

// PaymentMethod is the label shown on the message and receipt.
type PaymentMethod string

const (
	PaymentMethodNone PaymentMethod = ""
	PaymentMethodYape PaymentMethod = "Yape"
	PaymentMethodPlin PaymentMethod = "Plin"
	PaymentMethodQR   PaymentMethod = "QR"
	PaymentMethodCard PaymentMethod = "Tarjeta"
)

// IsQR reports whether the method is settled by scanning a code and confirming.
func (m PaymentMethod) IsQR() bool {
	switch m {
	case PaymentMethodYape, PaymentMethodPlin, PaymentMethodQR:
		return true
	}
	return false
}

// ParsePaymentMethod accepts option keys ("yape", "plin", "qr", "card") or labels.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yape":
		return PaymentMethodYape, nil
	case "plin":
		return PaymentMethodPlin, nil
	case "qr":
		return PaymentMethodQR, nil
	case "card", "tarjeta":
		return PaymentMethodCard, nil
	}
	return PaymentMethodNone, ErrInvalidMethod
}

var (
	cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
	cardExpiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cardCVVPattern    = regexp.MustCompile(`^\d{3,4}$`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// Card holds the fields typed into the card form. Only their shape is checked.
type Card struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

// Validate checks number, expiry and CVV in that order and names the first bad field.
func (c Card) Validate() error {
	if !cardNumberPattern.MatchString(whitespace.ReplaceAllString(c.Number, "")) {
		return &InvalidCardFieldError{Field: CardFieldNumber}
	}
	if !cardExpiryPattern.MatchString(c.Expiry) {
		return &InvalidCardFieldError{Field: CardFieldExpiry}
	}
	if !cardCVVPattern.MatchString(c.CVV) {
		return &InvalidCardFieldError{Field: CardFieldCVV}
	}
	return nil
}
