package ratelimit

import "fmt"

// Message is the localized explanation returned with a denied check.
// Spanish is the product's primary language, English the fallback.
type Message struct {
	ES string `json:"es"`
	EN string `json:"en"`
}

// Denial is the user-facing payload for a denied rate limit check.
type Denial struct {
	Error       string  `json:"error"`
	Code        string  `json:"code"`
	WaitSeconds int     `json:"waitSeconds"`
	Message     Message `json:"message"`
}

// NewDenial builds the structured denial payload for a denied result,
// including the required wait time in both languages.
func NewDenial(result Result) Denial {
	var msg Message

	switch result.Reason {
	case ReasonTooFast:
		msg = Message{
			ES: fmt.Sprintf("Espera %d segundo%s antes de enviar otro mensaje.",
				result.WaitSeconds, plural(result.WaitSeconds)),
			EN: fmt.Sprintf("Wait %d second%s before sending another message.",
				result.WaitSeconds, plural(result.WaitSeconds)),
		}
	case ReasonMinuteLimit:
		msg = Message{
			ES: "Has enviado muchas solicitudes. Espera un minuto.",
			EN: "You've sent too many requests. Wait a minute.",
		}
	case ReasonHourLimit:
		msg = Message{
			ES: "Has alcanzado el límite de solicitudes por hora. Vuelve más tarde.",
			EN: "You've reached the hourly request limit. Try again later.",
		}
	default:
		msg = Message{
			ES: "Demasiadas solicitudes. Intenta de nuevo.",
			EN: "Too many requests. Please try again.",
		}
	}

	return Denial{
		Error:       "rate_limited",
		Code:        "RATE_LIMITED",
		WaitSeconds: result.WaitSeconds,
		Message:     msg,
	}
}

// plural works for both languages here: "segundos" and "seconds" take the
// same suffix.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
