// Package bridge derives the shared conference room name that lets two
// independently-established call legs rendezvous. The caller leg is parked in
// the room by a webhook handler; the agent leg dials into it from a browser
// client. Neither side can hand the other a live session object, so the room
// name derived here is the only link between them.
package bridge

const roomPrefix = "queue-"

// RoomFor returns the conference room name for a telephony call SID.
//
// The derivation is keyed off the telephony provider's call SID and nothing
// else: for an AI-transferred call the AI provider's own call id names a
// different session than the PSTN leg that actually joins the conference, so
// using it would leave the two legs in different rooms.
func RoomFor(callSID string) string {
	return roomPrefix + callSID
}

// CanonicalLegID picks the telephony call SID both sides can address, in
// order of preference. Transfer webhooks may carry the SID in several spots
// and older events may omit it; the first non-empty candidate wins.
func CanonicalLegID(candidates ...string) string {
	for _, id := range candidates {
		if id != "" {
			return id
		}
	}
	return ""
}
