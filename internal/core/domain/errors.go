package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrPaymentRequired        = errors.New("payment required before sending")
	ErrMissingDestination     = errors.New("delivery address or location required")
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	ErrGeolocationDenied      = errors.New("geolocation denied")
	ErrPersistenceLoad        = errors.New("persisted cart could not be loaded")
	ErrPresentationBlocked    = errors.New("receipt surface blocked")

	ErrStoreClosed        = errors.New("store is closed")
	ErrInvalidItem        = errors.New("invalid item")
	ErrPriceConflict      = errors.New("item already in cart at a different price")
	ErrInvalidTransition  = errors.New("operation not allowed in current state")
	ErrInvalidMethod      = errors.New("unknown payment method")
	ErrPaymentPending     = errors.New("payment verification already in progress")
	ErrLocationPending    = errors.New("location capture already in progress")
	ErrStalePayment       = errors.New("payment result no longer applies")
	ErrSessionClosed      = errors.New("session closed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrComposeMessage     = errors.New("message could not be composed")
)

// Card fields named by InvalidCardFieldError.
const (
	CardFieldNumber = "number"
	CardFieldExpiry = "expiry"
	CardFieldCVV    = "cvv"
)

// InvalidCardFieldError names the first card field that failed its pattern.
type InvalidCardFieldError struct {
	Field string
}

func (e *InvalidCardFieldError) Error() string {
	return fmt.Sprintf("invalid card %s", e.Field)
}

// IsInvalidCard reports whether err is a card validation failure.
func IsInvalidCard(err error) bool {
	var cardErr *InvalidCardFieldError
	return errors.As(err, &cardErr)
}

// Notice returns the text shown to the shopper for err, or "" when err is nil.
func Notice(err error) string {
	if err == nil {
		return ""
	}

	var cardErr *InvalidCardFieldError
	if errors.As(err, &cardErr) {
		switch cardErr.Field {
		case CardFieldNumber:
			return "Número de tarjeta inválido"
		case CardFieldExpiry:
			return "Fecha inválida (MM/YY)"
		default:
			return "CVV inválido"
		}
	}

	switch {
	case errors.Is(err, ErrEmptyCart):
		return "El carrito está vacío"
	case errors.Is(err, ErrPaymentRequired):
		return "Por favor realiza el pago antes de enviar el pedido"
	case errors.Is(err, ErrMissingDestination):
		return "Por favor comparte tu ubicación o ingresa una dirección antes de enviar el pedido"
	case errors.Is(err, ErrGeolocationUnavailable):
		return "Geolocalización no disponible"
	case errors.Is(err, ErrGeolocationDenied):
		return "No se pudo obtener la ubicación"
	case errors.Is(err, ErrPresentationBlocked):
		return "No se pudo abrir la boleta (pop-ups bloqueados)"
	case errors.Is(err, ErrStoreClosed):
		return "Local Cerrado"
	case errors.Is(err, ErrPriceConflict):
		return "El producto ya está en el carrito con otro precio"
	case errors.Is(err, ErrPaymentPending):
		return "Verificando pago..."
	case errors.Is(err, ErrComposeMessage):
		return "Error al generar el mensaje"
	default:
		return "No se pudo completar la operación"
	}
}
