package types

// Envelope is the wire shape every endpoint returns:
// {"error": bool, "message": string, "data": object|null}.
// The shape is part of the public API contract and must not change.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success wraps data in a non-error envelope.
func Success(message string, data any) Envelope {
	if message == "" {
		message = "Success"
	}
	return Envelope{Error: false, Message: message, Data: data}
}

// Failure builds an error envelope. Data stays null for errors.
func Failure(message string) Envelope {
	return Envelope{Error: true, Message: message, Data: nil}
}
