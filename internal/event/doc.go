// Package event defines the closed set of inbound event kinds the gate
// understands, and the normalized projection the decision engine consumes.
package event
