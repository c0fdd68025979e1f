package protocol

// RemoveCmd (client -> server): claim removal of one cube. Wallet is an
// opaque payer tag; the server never verifies payment, it only echoes the
// tag back in the resulting broadcast.
type RemoveCmd struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Wallet string `json:"wallet,omitempty"`
}

// ResetCmd (client -> server): wipe the grid and start a new epoch.
type ResetCmd struct {
	Type string `json:"type"`
}

// InitMsg (server -> client): full grid snapshot. Sent once to each new
// connection and broadcast to everyone after an accepted reset.
type InitMsg struct {
	Type         string          `json:"type"`
	Cubes        map[string]bool `json:"cubes"`
	ClickedCount int             `json:"clickedCount"`
}

// CubeRemovedMsg (server -> client): broadcast for every accepted removal.
// Wallet is null when the request carried no payer tag.
type CubeRemovedMsg struct {
	Type         string  `json:"type"`
	ID           string  `json:"id"`
	ClickedCount int     `json:"clickedCount"`
	Wallet       *string `json:"wallet"`
}

// ActiveMsg (server -> client): current live viewer count. Broadcast on
// every connect and disconnect.
type ActiveMsg struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ErrorMsg (server -> client): addressed to the offending connection only.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
