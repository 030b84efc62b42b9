package pairing

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewQRGenerator(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "myrepo")

	if gen.host != "localhost" {
		t.Errorf("expected host localhost, got %s", gen.host)
	}
	if gen.port != 8970 {
		t.Errorf("expected port 8970, got %d", gen.port)
	}
	if gen.projectName != "myrepo" {
		t.Errorf("expected projectName myrepo, got %s", gen.projectName)
	}
}

func TestQRGenerator_Link(t *testing.T) {
	gen := NewQRGenerator("192.168.1.100", 8970, "testrepo")

	link := gen.Link()

	// WS shares the port with a /ws path
	if link.WebSocket != "ws://192.168.1.100:8970/ws" {
		t.Errorf("expected ws://192.168.1.100:8970/ws, got %s", link.WebSocket)
	}
	if link.HTTP != "http://192.168.1.100:8970" {
		t.Errorf("expected http://192.168.1.100:8970, got %s", link.HTTP)
	}
	if link.Project != "testrepo" {
		t.Errorf("expected testrepo, got %s", link.Project)
	}
	if link.Token != "" {
		t.Errorf("expected empty token, got %s", link.Token)
	}
}

func TestQRGenerator_SetExternalURL(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "testrepo")

	// e.g. VS Code port forwarding or a tunnel
	gen.SetExternalURL("https://example.com")

	link := gen.Link()

	// WS URL should be derived from the HTTP scheme
	if link.WebSocket != "wss://example.com/ws" {
		t.Errorf("expected wss://example.com/ws, got %s", link.WebSocket)
	}
	if link.HTTP != "https://example.com" {
		t.Errorf("expected https://example.com, got %s", link.HTTP)
	}
}

func TestQRGenerator_SetExternalURL_HTTP(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "testrepo")

	gen.SetExternalURL("http://tunnel.local:9000/")

	link := gen.Link()

	if link.HTTP != "http://tunnel.local:9000" {
		t.Errorf("expected http://tunnel.local:9000, got %s", link.HTTP)
	}
	if link.WebSocket != "ws://tunnel.local:9000/ws" {
		t.Errorf("expected ws://tunnel.local:9000/ws, got %s", link.WebSocket)
	}
}

func TestQRGenerator_SetToken(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "testrepo")

	gen.SetToken("secret-token-123")

	link := gen.Link()

	if link.Token != "secret-token-123" {
		t.Errorf("expected secret-token-123, got %s", link.Token)
	}
}

func TestQRGenerator_GenerateJSON(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "testrepo")

	jsonStr, err := gen.GenerateJSON()
	if err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var link BoardLink
	if err := json.Unmarshal([]byte(jsonStr), &link); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	if link.WebSocket != "ws://localhost:8970/ws" {
		t.Errorf("expected ws://localhost:8970/ws, got %s", link.WebSocket)
	}
	if link.HTTP != "http://localhost:8970" {
		t.Errorf("expected http://localhost:8970, got %s", link.HTTP)
	}
	if link.Project != "testrepo" {
		t.Errorf("expected testrepo, got %s", link.Project)
	}
}

func TestQRGenerator_GenerateTerminal(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "testrepo")

	qrStr, err := gen.GenerateTerminal()
	if err != nil {
		t.Fatalf("GenerateTerminal failed: %v", err)
	}

	if qrStr == "" {
		t.Error("expected non-empty QR code string")
	}

	lines := strings.Split(qrStr, "\n")
	if len(lines) < 5 {
		t.Errorf("expected at least 5 lines in QR code, got %d", len(lines))
	}
}

func TestQRGenerator_GeneratePNG(t *testing.T) {
	gen := NewQRGenerator("localhost", 8970, "testrepo")

	pngData, err := gen.GeneratePNG(256)
	if err != nil {
		t.Fatalf("GeneratePNG failed: %v", err)
	}

	if len(pngData) < 8 {
		t.Fatalf("PNG data too short: %d bytes", len(pngData))
	}

	pngSignature := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	for i, b := range pngSignature {
		if pngData[i] != b {
			t.Errorf("PNG signature mismatch at byte %d: expected %x, got %x", i, b, pngData[i])
		}
	}
}
