// Package commands implements the superuser command surface over the
// block-list store: block/unblock for users, groups, and private
// conversations, bulk roster operations, status queries, toggles, and
// the confirmed reset commands. Only superusers can invoke commands;
// everyone else's text is passed over in silence.
package commands
