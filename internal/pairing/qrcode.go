// Package pairing renders scannable links to a served board.
package pairing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// BoardLink is the connection info a serve instance advertises to clients.
type BoardLink struct {
	HTTP      string `json:"http"`
	WebSocket string `json:"ws"`
	Project   string `json:"project"`
	Token     string `json:"token,omitempty"`
}

// QRGenerator renders the board URL of a serve instance as a QR code.
type QRGenerator struct {
	host        string
	port        int
	projectName string
	token       string
	externalURL string // Optional: override base URL (port forwarding, tunnels)
}

// NewQRGenerator creates a generator for a board served on host:port.
func NewQRGenerator(host string, port int, projectName string) *QRGenerator {
	return &QRGenerator{
		host:        host,
		port:        port,
		projectName: projectName,
	}
}

// SetToken sets the access token included in the pairing payload.
func (g *QRGenerator) SetToken(token string) {
	g.token = token
}

// SetExternalURL overrides the advertised base URL, for port forwarding or
// tunnel setups. The WebSocket URL is derived from its scheme.
func (g *QRGenerator) SetExternalURL(url string) {
	g.externalURL = strings.TrimSuffix(url, "/")
}

// Link returns the connection info for this serve instance. HTTP and
// WebSocket share one port; the WebSocket endpoint lives under /ws.
func (g *QRGenerator) Link() *BoardLink {
	httpURL := fmt.Sprintf("http://%s:%d", g.host, g.port)
	wsURL := fmt.Sprintf("ws://%s:%d/ws", g.host, g.port)

	if g.externalURL != "" {
		httpURL = g.externalURL
		switch {
		case strings.HasPrefix(g.externalURL, "https://"):
			wsURL = "wss://" + strings.TrimPrefix(g.externalURL, "https://") + "/ws"
		case strings.HasPrefix(g.externalURL, "http://"):
			wsURL = "ws://" + strings.TrimPrefix(g.externalURL, "http://") + "/ws"
		}
	}

	return &BoardLink{
		HTTP:      httpURL,
		WebSocket: wsURL,
		Project:   g.projectName,
		Token:     g.token,
	}
}

// GenerateJSON returns the board link as JSON, for the pairing endpoint.
func (g *QRGenerator) GenerateJSON() (string, error) {
	data, err := json.Marshal(g.Link())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GenerateTerminal renders a QR code for terminal display. It encodes the
// plain HTTP URL so any phone camera can open the board.
func (g *QRGenerator) GenerateTerminal() (string, error) {
	qr, err := qrcode.New(g.Link().HTTP, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// GeneratePNG renders the board URL as a PNG image.
func (g *QRGenerator) GeneratePNG(size int) ([]byte, error) {
	return qrcode.Encode(g.Link().HTTP, qrcode.Medium, size)
}

// PrintToTerminal prints the QR code and the board URL.
func (g *QRGenerator) PrintToTerminal() {
	qrStr, err := g.GenerateTerminal()
	if err != nil {
		fmt.Printf("  [Error generating QR code: %v]\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Scan to open the board:")
	fmt.Println()

	for _, line := range strings.Split(qrStr, "\n") {
		if line != "" {
			fmt.Printf("  %s\n", line)
		}
	}

	fmt.Println()
	fmt.Printf("  %s\n", g.Link().HTTP)
	fmt.Println()
}
