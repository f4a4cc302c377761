// Package twiml models the directives the orchestrator hands back to the
// telephony provider and renders them as TwiML. The orchestrator only works
// with Directive values; serialization stays here.
package twiml

import (
	"encoding/xml"
	"fmt"

	"github.com/pkg/errors"
)

// Directive is one provider instruction. The concrete types are Speak,
// Record, Play, Pause, Hangup and Message.
type Directive interface {
	verb() any
}

// Speak reads text to the caller.
type Speak struct {
	Text  string
	Voice string
}

// Record asks the provider to capture caller audio and post the result.
type Record struct {
	// Action is the callback URL receiving the finished recording.
	Action string

	// StatusCallback receives out-of-band recording status events.
	StatusCallback string

	// MaxDuration caps the capture length in seconds.
	MaxDuration int

	// SilenceTimeout stops capture after this many seconds of silence.
	SilenceTimeout int
}

// Play streams audio from a URL to the caller.
type Play struct {
	URL string
}

// Pause waits before the next directive.
type Pause struct {
	Seconds int
}

// Hangup ends the call.
type Hangup struct{}

// Message sends a text reply on a messaging channel.
type Message struct {
	Body string
}

type sayElement struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type recordElement struct {
	XMLName                       xml.Name `xml:"Record"`
	Action                        string   `xml:"action,attr,omitempty"`
	Method                        string   `xml:"method,attr,omitempty"`
	MaxLength                     int      `xml:"maxLength,attr,omitempty"`
	Timeout                       int      `xml:"timeout,attr,omitempty"`
	PlayBeep                      bool     `xml:"playBeep,attr"`
	Trim                          string   `xml:"trim,attr,omitempty"`
	RecordingStatusCallback       string   `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackMethod string   `xml:"recordingStatusCallbackMethod,attr,omitempty"`
}

type playElement struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type pauseElement struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type hangupElement struct {
	XMLName xml.Name `xml:"Hangup"`
}

type messageElement struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

func (d Speak) verb() any {
	return sayElement{Voice: d.Voice, Text: d.Text}
}

func (d Record) verb() any {
	return recordElement{
		Action:                        d.Action,
		Method:                        "POST",
		MaxLength:                     d.MaxDuration,
		Timeout:                       d.SilenceTimeout,
		PlayBeep:                      true,
		Trim:                          "trim-silence",
		RecordingStatusCallback:       d.StatusCallback,
		RecordingStatusCallbackMethod: "POST",
	}
}

func (d Play) verb() any {
	return playElement{URL: d.URL}
}

func (d Pause) verb() any {
	return pauseElement{Length: d.Seconds}
}

func (d Hangup) verb() any {
	return hangupElement{}
}

func (d Message) verb() any {
	return messageElement{Body: d.Body}
}

type responseElement struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Render serializes directives into a TwiML response document, preserving
// order.
func Render(directives []Directive) (string, error) {
	resp := responseElement{Verbs: make([]any, 0, len(directives))}
	for _, d := range directives {
		resp.Verbs = append(resp.Verbs, d.verb())
	}

	out, err := xml.MarshalIndent(resp, "", "    ")
	if err != nil {
		return "", errors.Wrap(err, "twiml: marshal response")
	}
	return xml.Header + string(out), nil
}

// MustRender is Render for directive sets whose shape is fixed at the call
// site, where a marshalling failure is a programming error.
func MustRender(directives []Directive) string {
	out, err := Render(directives)
	if err != nil {
		panic(fmt.Sprintf("twiml: %v", err))
	}
	return out
}
