// Package live runs a two-way voice conversation with a Gemini native
// audio model. Microphone audio streams up, model speech plays back, and
// both sides' transcripts are reported as conversation messages.
package live

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Common errors
var (
	ErrNoAPIKey       = errors.New("gemini api key not configured")
	ErrMicUnavailable = errors.New("microphone unavailable")
	ErrSessionActive  = errors.New("live session already running")
)

// Messages shown to the user.
const (
	MsgUnavailable    = "Mic access required or AI offline."
	MsgConnectionLost = "Connection lost. Tap to retry."
)

// Audio formats. The model takes 16kHz and answers at 24kHz, both mono
// 16-bit little-endian PCM.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	ChunkFrames      = 4096
	InputMIMEType    = "audio/pcm;rate=16000"
)

// State is the session lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateError      State = "error"
)

// Status is what the frontend renders.
type Status struct {
	State   State  `json:"state"`
	Error   string `json:"error,omitempty"`
	Talking bool   `json:"talking"`
}

// Message is one server update.
type Message struct {
	InputText    string
	OutputText   string
	Audio        []byte
	TurnComplete bool
	Interrupted  bool
}

// Options configure one connection.
type Options struct {
	Voice             string
	SystemInstruction string
}

// Conn is an open model connection. Receive blocks until the next message
// and fails once the connection is closed. Close may be called more than
// once, concurrently.
type Conn interface {
	SendAudio(pcm []byte) error
	Receive() (Message, error)
	Close() error
}

// Connector opens model connections.
type Connector interface {
	Connect(ctx context.Context, opts Options) (Conn, error)
}

// Microphone delivers mono float samples until ctx ends or Stop is called.
type Microphone interface {
	Start(ctx context.Context, sampleRate, frames int) (<-chan []float32, error)
	Stop() error
}

// Player plays mono float samples, blocking until they are queued.
type Player interface {
	Play(samples []float32, sampleRate int) error
}

// VoiceFor picks the model voice for a persona gender.
func VoiceFor(gender string) string {
	if gender == "male" {
		return "Puck"
	}
	return "Kore"
}

// Instruction is the system prompt for a user.
func Instruction(userName string) string {
	if userName == "" {
		userName = "the user"
	}
	return fmt.Sprintf("You are a friendly communication assistant for %s, an AAC user. "+
		"Help facilitate conversation with their partner or answer questions. "+
		"Be concise, patient, and use clear language. "+
		"The user might be using symbols to talk, or their partner might be speaking to you.", userName)
}

// EncodePCM16 converts samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clipped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v*32767)))
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian PCM to samples in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}
	return out
}
