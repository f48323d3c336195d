// Package stream reassembles cumulative agent-step snapshots into a
// monotonic, non-duplicating text delta stream.
package stream

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Role is the closed set of message origins, resolved once per snapshot.
type Role int

const (
	RoleOther Role = iota
	RoleHuman
	RoleAssistant
	RoleTool
)

// RoleFromString folds the role spellings used by chat transports into the
// closed variant.
func RoleFromString(s string) Role {
	switch s {
	case "human", "user":
		return RoleHuman
	case "ai", "assistant":
		return RoleAssistant
	case "tool", "function":
		return RoleTool
	default:
		return RoleOther
	}
}

// Content is either plain text or an ordered list of parts.
type Content interface {
	flatten() string
}

// PlainText is string-valued message content.
type PlainText string

func (t PlainText) flatten() string { return string(t) }

// Part is one content part; non-text parts carry an empty Text.
type Part struct {
	Text string
}

// Parts is list-valued message content; parts contribute their text in order.
type Parts []Part

func (p Parts) flatten() string {
	var out string
	for _, part := range p {
		out += part.Text
	}
	return out
}

// Flatten normalizes any message content to a flat string.
func Flatten(c Content) string {
	if c == nil {
		return ""
	}
	return c.flatten()
}

// Message is one entry in a snapshot's transcript.
type Message struct {
	Role    Role
	Content Content
}

// Snapshot is one cumulative state of the agent loop: the transcript so
// far, with the newest message last.
type Snapshot struct {
	Messages []Message
}

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateClosed
	StateFailed
)

// Assembler tracks the last emitted assistant text for one request and
// writes only the newly appended suffix of each snapshot.
type Assembler struct {
	w     io.Writer
	last  string
	state State
}

func NewAssembler(w io.Writer) *Assembler {
	return &Assembler{w: w, state: StateIdle}
}

func (a *Assembler) State() State { return a.state }

// LastEmitted returns the full assistant text written so far.
func (a *Assembler) LastEmitted() string { return a.last }

// Push processes one snapshot. Non-assistant and empty snapshots never
// advance the state; a snapshot whose text is shorter than what was already
// emitted is ignored rather than re-emitted (shrinkage only happens on a
// misbehaving upstream, and availability wins over strictness there).
// A write failure moves the assembler to Failed and is returned.
func (a *Assembler) Push(snap Snapshot) error {
	if a.state == StateClosed || a.state == StateFailed {
		return nil
	}
	if len(snap.Messages) == 0 {
		return nil
	}

	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != RoleAssistant {
		return nil
	}

	text := Flatten(last.Content)
	if text == "" {
		return nil
	}

	if len(text) < len(a.last) {
		log.Debug().
			Int("seen", len(a.last)).
			Int("got", len(text)).
			Msg("assistant text shrank between snapshots, ignoring")
		return nil
	}

	delta := text[len(a.last):]
	if delta == "" {
		return nil
	}

	if _, err := a.w.Write([]byte(delta)); err != nil {
		a.state = StateFailed
		return fmt.Errorf("stream write: %w", err)
	}
	a.last = text
	a.state = StateStreaming
	return nil
}

// Close marks the normal end of the snapshot sequence.
func (a *Assembler) Close() {
	if a.state != StateFailed {
		a.state = StateClosed
	}
}

// Fail marks an upstream failure.
func (a *Assembler) Fail() {
	a.state = StateFailed
}

// Consume pushes snapshots in arrival order until the channel closes. On a
// write failure it stops emitting but keeps draining so the producer is
// never blocked on a dead consumer.
func (a *Assembler) Consume(snaps <-chan Snapshot) error {
	var firstErr error
	for snap := range snaps {
		if firstErr != nil {
			continue
		}
		if err := a.Push(snap); err != nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	a.Close()
	return nil
}
