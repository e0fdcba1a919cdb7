package server

// HTTPError is the unified error body returned by handlers.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the issued JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateRunRequest starts a research run.
type CreateRunRequest struct {
	Topic    string `json:"topic"`
	PlanName string `json:"plan_name"`
}

// CreateRunResponse acknowledges an accepted run.
type CreateRunResponse struct {
	RunID string `json:"run_id"`
}
