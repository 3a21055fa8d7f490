// Package patchcard decides which PATCH messages are surfaced as cards on
// the chat platforms, collates series membership for cover letters, and owns
// the card lifecycle after creation (platform ids, thread flag, cached To+CC
// list).
//
// Only a single PATCH or a series cover letter becomes a card. Sub-patches
// stay in the message store and are collated onto the cover letter's card at
// creation and render time.
package patchcard
