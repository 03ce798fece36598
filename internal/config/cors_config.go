package config

// AnyOrigin is the CORS policy for /auth: the broker has no RP allow-list
// (spec leaves redirect_uri/origin registration unspecified, see
// DESIGN.md), so any origin may call it and the response mirrors the
// request's Origin header rather than enumerating one.
type AnyOrigin struct{}

func (AnyOrigin) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (AnyOrigin) GetAllowedHeaders() string {
	return "Content-Type"
}
