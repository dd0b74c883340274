// Package ident validates identifier tokens supplied as command arguments
// before they reach block-list mutation logic.
package ident
