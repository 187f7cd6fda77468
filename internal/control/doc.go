// Package control implements a client for the Tor control-port protocol.
//
// The protocol is line oriented: the controller writes CRLF-terminated
// commands and the daemon answers with reply lines of the form
//
//	<3-digit status><separator><text>
//
// where the separator is '-' for a continuation line, '+' for the start of a
// multi-line data block (terminated by a line containing a single '.'), and
// ' ' for the final line of a reply. Lines with a 6xx status are asynchronous
// events that may arrive at any time, interleaved with command replies.
//
// A Conn owns exactly one TCP socket. One goroutine reads and demultiplexes
// incoming lines: 6xx lines fan out to event subscribers, everything else is
// appended to the oldest pending command. A second goroutine serializes
// command writes so that concurrent senders never interleave bytes on the
// socket. Replies are matched to commands strictly in submission order; the
// protocol guarantees in-order replies, and a sync line that arrives with no
// command pending tears the connection down with ErrProtocolDesync rather
// than attempting to resynchronize.
//
// Reconnection is deliberately not implemented here. A closed Conn is dead;
// the owning session decides whether to dial again and must re-authenticate
// from scratch.
package control
