package webhook

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML builder for the verbs this service emits. Built on
// encoding/xml structs so responses are well-formed by construction.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName   xml.Name `xml:"Gather"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Verbs     []any    `xml:",any"`
}

type twimlDial struct {
	XMLName    xml.Name         `xml:"Dial"`
	Action     string           `xml:"action,attr,omitempty"`
	Number     string           `xml:"Number,omitempty"`
	Conference *twimlConference `xml:"Conference,omitempty"`
}

type twimlConference struct {
	StartConferenceOnEnter string `xml:"startConferenceOnEnter,attr"`
	EndConferenceOnExit    string `xml:"endConferenceOnExit,attr"`
	Room                   string `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

// TwiML assembles a single telephony response document
type TwiML struct {
	verbs []any
}

// Say speaks text to the caller
func (t *TwiML) Say(text string) *TwiML {
	t.verbs = append(t.verbs, twimlSay{Text: text})
	return t
}

// GatherDigits prompts for numDigits key presses, posting them to action
func (t *TwiML) GatherDigits(action string, numDigits, timeout int, prompt string) *TwiML {
	g := twimlGather{
		Action:    action,
		Method:    "POST",
		NumDigits: numDigits,
		Timeout:   timeout,
	}
	if prompt != "" {
		g.Verbs = append(g.Verbs, twimlSay{Text: prompt})
	}
	t.verbs = append(t.verbs, g)
	return t
}

// DialNumber connects the caller to a PSTN number
func (t *TwiML) DialNumber(number, action string) *TwiML {
	t.verbs = append(t.verbs, twimlDial{Action: action, Number: number})
	return t
}

// JoinConference parks the leg in a named conference room. The caller leg
// waits (startConferenceOnEnter false); the agent leg starts the bridge and
// tears the room down when it leaves.
func (t *TwiML) JoinConference(room string, startOnEnter, endOnExit bool, action string) *TwiML {
	t.verbs = append(t.verbs, twimlDial{
		Action: action,
		Conference: &twimlConference{
			StartConferenceOnEnter: boolAttr(startOnEnter),
			EndConferenceOnExit:    boolAttr(endOnExit),
			Room:                   room,
		},
	})
	return t
}

// Hangup ends the call
func (t *TwiML) Hangup() *TwiML {
	t.verbs = append(t.verbs, twimlHangup{})
	return t
}

// Redirect hands the leg to another TwiML document
func (t *TwiML) Redirect(url string) *TwiML {
	t.verbs = append(t.verbs, twimlRedirect{URL: url})
	return t
}

// Render serializes the document
func (t *TwiML) Render() (string, error) {
	r := twimlResponse{Verbs: t.verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
