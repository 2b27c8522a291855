package scene

import (
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/propagation"
	"github.com/anldrms/satellite-tracker-pro/internal/transform"
)

// SSE message payload types. Positions are [lon°, lat°, alt km].

type snapshotMessage struct {
	Type    string         `json:"type"`
	Clock   clockMessage   `json:"clock"`
	Camera  cameraMessage  `json:"camera"`
	Proxies []proxyPayload `json:"proxies"`
}

type proxyPayload struct {
	ID      string     `json:"id"`
	Color   string     `json:"color"`
	Visible bool       `json:"visible"`
	Size    int        `json:"size"`
	Label   string     `json:"label,omitempty"`
	P       [3]float64 `json:"p"`
}

type visibilityMessage struct {
	Type   string   `json:"type"`
	Shown  []string `json:"shown,omitempty"`
	Hidden []string `json:"hidden,omitempty"`
}

type emphasisMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Size  int    `json:"size"`
	Label string `json:"label,omitempty"`
}

type cameraMessage struct {
	Type       string     `json:"type"`
	P          [3]float64 `json:"p"`
	ECEF       [3]float64 `json:"ecef"` // meters, for globes that place cameras in Cartesian space
	DurationMs int64      `json:"duration_ms"`
}

type clockMessage struct {
	Type       string  `json:"type"`
	T          string  `json:"t"`
	Enabled    bool    `json:"enabled"`
	Multiplier float64 `json:"multiplier"`
}

type frameMessage struct {
	Type string       `json:"type"`
	T    string       `json:"t"`
	Sat  []satPayload `json:"sat"`
}

type satPayload struct {
	ID string     `json:"id"`
	P  [3]float64 `json:"p"`
}

func triple(g transform.Geodetic) [3]float64 {
	return [3]float64{g.LonDeg, g.LatDeg, g.AltKm}
}

func newCameraMessage(target transform.Geodetic, d time.Duration) cameraMessage {
	x, y, z := transform.GeodeticToECEF(target)
	return cameraMessage{Type: "camera", P: triple(target), ECEF: [3]float64{x, y, z}, DurationMs: d.Milliseconds()}
}

func newVisibilityMessage(changes map[string]bool) visibilityMessage {
	msg := visibilityMessage{Type: "visibility"}
	for id, visible := range changes {
		if visible {
			msg.Shown = append(msg.Shown, id)
		} else {
			msg.Hidden = append(msg.Hidden, id)
		}
	}
	return msg
}

func newFrameMessage(t time.Time, placements []propagation.Placement) frameMessage {
	sats := make([]satPayload, len(placements))
	for i, pl := range placements {
		sats[i] = satPayload{ID: pl.ID, P: triple(propagation.RenderPosition(pl.Fix))}
	}
	return frameMessage{Type: "frame", T: t.UTC().Format(time.RFC3339), Sat: sats}
}

func (s *Scene) clockMessage() clockMessage {
	enabled, mult := s.clock.State()
	return clockMessage{
		Type:       "clock",
		T:          s.clock.Now().UTC().Format(time.RFC3339),
		Enabled:    enabled,
		Multiplier: mult,
	}
}

// snapshot is the full scene state, sent first on every stream connection.
func (s *Scene) snapshot() snapshotMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proxies := make([]proxyPayload, len(s.order))
	for i, id := range s.order {
		st := s.stateLocked(id)
		proxies[i] = proxyPayload{
			ID:      id,
			Color:   st.Color,
			Visible: st.Visible,
			Size:    st.Size(),
			Label:   st.Label,
			P:       triple(st.Position),
		}
	}
	return snapshotMessage{
		Type:    "snapshot",
		Clock:   s.clockMessage(),
		Camera:  newCameraMessage(s.camera.Target, s.camera.Duration),
		Proxies: proxies,
	}
}
