package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	discoveryPort  = 5678
	discoveryMagic = "irobotmcs"
)

// Announcement is one robot's reply to a discovery broadcast.
type Announcement struct {
	Hostname  string `json:"hostname"`
	RobotName string `json:"robotname"`
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
	SKU       string `json:"sku"`
	// BLID is derived from the hostname ("Roomba-<blid>" or "iRobot-<blid>").
	BLID string `json:"blid,omitempty"`
}

// Discover broadcasts the discovery magic on UDP port 5678 and collects
// JSON announcements until the timeout elapses. Returning no robots is not
// an error.
func Discover(ctx context.Context, timeout time.Duration) ([]Announcement, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: discoveryPort}
	if _, err := conn.WriteTo([]byte(discoveryMagic), dest); err != nil {
		return nil, fmt.Errorf("send discovery broadcast: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	seen := map[string]struct{}{}
	var found []Announcement
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			// Deadline elapsed: discovery window is over.
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return found, nil
			}
			return found, fmt.Errorf("read discovery reply: %w", err)
		}
		payload := buf[:n]
		if string(payload) == discoveryMagic {
			// Our own broadcast echoed back.
			continue
		}
		var ann Announcement
		if err := json.Unmarshal(payload, &ann); err != nil {
			continue
		}
		ann.BLID = blidFromHostname(ann.Hostname)
		if ann.IP == "" {
			continue
		}
		if _, dup := seen[ann.IP]; dup {
			continue
		}
		seen[ann.IP] = struct{}{}
		found = append(found, ann)
	}
}

func blidFromHostname(hostname string) string {
	parts := strings.SplitN(hostname, "-", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
