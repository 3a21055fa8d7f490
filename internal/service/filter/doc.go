// Package filter implements the patch-card filter engine and the rule-group
// management operations behind the /filter commands.
//
// A filter is a named rule group: its conditions are ANDed, and across
// filters the groups are ORed. A pattern of the form /re/ is a case-sensitive
// regex, /re/i a case-insensitive regex, and anything else a case-insensitive
// substring match. The global exclusive mode decides whether a non-matching
// PATCH still becomes a card.
package filter
