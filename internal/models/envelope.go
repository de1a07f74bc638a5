package models

// ActionRequest is the uniform envelope for invoking a named action on
// a connected platform. Params is an opaque bag; each connector narrows
// its own slice immediately on entry.
type ActionRequest struct {
	PlatformID string                 `json:"platform_id"`
	Action     string                 `json:"action"`
	Params     map[string]interface{} `json:"params"`
	UserID     string                 `json:"user_id"`
}

// ActionResult is the uniform envelope a connector reports back.
// Invariant: Success implies Error is empty; failure implies Data is nil
// and Error is non-empty. Build results through OKResult/FailResult.
type ActionResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OKResult builds a successful ActionResult.
func OKResult(data interface{}) *ActionResult {
	return &ActionResult{Success: true, Data: data}
}

// FailResult builds a failed ActionResult.
func FailResult(msg string) *ActionResult {
	if msg == "" {
		msg = "unknown error"
	}

	return &ActionResult{Success: false, Error: msg}
}
