package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// JSON reports whether output is machine readable
func (o *Output) JSON() bool {
	return o.format == "json"
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.JSON() {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.JSON() {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// Prompt asks the player for input. Prompts are not shown in JSON mode.
func (o *Output) Prompt(msg string) {
	if !o.JSON() {
		_, _ = fmt.Fprint(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	if raw, ok := data.(json.RawMessage); ok {
		_, _ = fmt.Fprintln(o.w, string(raw))
		return
	}
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case RoomCreated:
		_, _ = fmt.Fprintf(o.w, "Room created: %s\n", v.RoomID)
	case Room:
		o.printRoom(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// RoomCreated response type
type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// RoomMember response type
type RoomMember struct {
	UserID string `json:"userId"`
	State  string `json:"state"`
}

// Room response type
type Room struct {
	RoomID            string       `json:"roomId"`
	Members           []RoomMember `json:"members"`
	Status            string       `json:"status"`
	CurrentTurnUserID string       `json:"currentTurnUserId,omitempty"`
	WinnerUserID      string       `json:"winnerUserId,omitempty"`
	FinishReason      string       `json:"finishReason,omitempty"`
	SecretRange       [2]int       `json:"secretRange"`
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Service != "" {
		_, _ = fmt.Fprintf(o.w, "Service: %s\n", h.Service)
	}
}

func (o *Output) printRoom(r Room) {
	_, _ = fmt.Fprintf(o.w, "Room: %s\n", r.RoomID)
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", r.Status)
	if r.SecretRange[1] != 0 {
		_, _ = fmt.Fprintf(o.w, "Range: %d-%d\n", r.SecretRange[0], r.SecretRange[1])
	}
	if r.CurrentTurnUserID != "" {
		_, _ = fmt.Fprintf(o.w, "Turn: %s\n", r.CurrentTurnUserID)
	}
	if r.WinnerUserID != "" {
		_, _ = fmt.Fprintf(o.w, "Winner: %s\n", r.WinnerUserID)
	}
	if r.FinishReason != "" {
		_, _ = fmt.Fprintf(o.w, "Finished: %s\n", r.FinishReason)
	}
	members := make([]string, len(r.Members))
	for i, m := range r.Members {
		members[i] = fmt.Sprintf("%s (%s)", m.UserID, m.State)
	}
	_, _ = fmt.Fprintf(o.w, "Members (%d): %s\n", len(r.Members), strings.Join(members, ", "))
}
