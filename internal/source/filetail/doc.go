// Package filetail implements the bulk-import producer for log files.
//
// Patterns use doublestar syntax, so "/var/log/**/*.log" matches recursively.
// On Start every matching file contributes its last TailLines lines. With
// Follow set, the directories holding those files (and the fixed prefix of
// each pattern) are watched with fsnotify; appended lines are read from the
// previous offset, files that appear later are read from the beginning, and
// removed or renamed files are forgotten until they reappear.
//
// Lines that hold a JSON object are decoded field by field; any other line
// becomes an INFO event carrying the raw text. Every event's Source is the
// file it came from.
package filetail
