// Package ops implements the capsule operations shared by the HTTP API,
// the MCP tools, and the CLI. Each operation takes an Input struct,
// validates it, and returns an Output struct or a typed error.
package ops

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}
