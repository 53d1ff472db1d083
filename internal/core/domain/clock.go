package domain

import "time"

const (
	DefaultOpenHour  = 9
	DefaultCloseHour = 23
)

// Hours are the opening hours of the store in local wall-clock hours (0-23).
type Hours struct {
	Open  int
	Close int
}

func DefaultHours() Hours {
	return Hours{Open: DefaultOpenHour, Close: DefaultCloseHour}
}

// IsOpen reports whether now falls inside [Open, Close) using now's own location.
func (h Hours) IsOpen(now time.Time) bool {
	return IsOpen(now, h.Open, h.Close)
}

func IsOpen(now time.Time, openHour, closeHour int) bool {
	hour := now.Hour()
	return openHour <= hour && hour < closeHour
}

// StatusLabel is the text of the store status badge.
func (h Hours) StatusLabel(now time.Time) string {
	if h.IsOpen(now) {
		return "Abierto"
	}
	return "Local Cerrado"
}
