package health

// Response represents the health check response
type Response struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version,omitempty"`
	Connections int    `json:"connections"`
	Uptime      string `json:"uptime"`
}

type PingResponse struct {
	Message string `json:"message"`
}
