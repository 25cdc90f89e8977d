package handlers

// Custom WebSocket close codes used by the room handler. These provide more
// specific reasons for closure than standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)

// codeRateLimited is the ack code for actions dropped by the per-connection limiter.
const codeRateLimited = "rate_limited"
