package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"interviewer/internal/session"
)

// Control socket operations.
const (
	OpStatus = "status"
	OpHealth = "health"
	OpDown   = "down"
	OpUp     = "up"
	OpLeave  = "leave"
	OpPlay   = "play"
)

type Request struct {
	Op string `json:"op"`
}

type Status struct {
	Running   bool            `json:"running"`
	UptimeSec float64         `json:"uptime_sec"`
	State     session.UIState `json:"state"`
	Turns     []Turn          `json:"turns"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type Turn struct {
	SessionID  string    `json:"session_id"`
	Transcript string    `json:"transcript,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	AudioURL   string    `json:"audio_url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Call sends one request over the unix socket and decodes the reply into out.
func Call(socketPath string, req Request, out any) error {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("cannot connect to session: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}
	if err := json.NewDecoder(conn).Decode(out); err != nil {
		return fmt.Errorf("decode %s reply: %w", req.Op, err)
	}
	return nil
}
