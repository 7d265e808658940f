// Package logtail reads log files from the end.
//
// # Reading the tail
//
// Read extracts the last maxLines lines of a file with a ring buffer, so a
// bulk import of a large file scans it once and keeps O(maxLines) lines in
// memory. It also reports the byte offset it stopped at.
//
//	tail, err := logtail.Read("/var/log/app/app.log", 1000)
//	cur := &logtail.Cursor{Path: "/var/log/app/app.log", Offset: tail.Offset}
//
// # Following
//
// Cursor picks up from that offset. Each ReadNew returns only complete
// lines; a partially written final line is buffered until its newline
// arrives. A file that shrinks below the cursor is assumed to have been
// truncated in place and is re-read from the beginning.
package logtail
