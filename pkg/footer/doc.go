/*
Package footer implements the trailer of company files.

A company file is laid out as

	[payload][footer body][marker]

where the marker is MarkerSize bytes at the very end of the file: the magic
"AFTR" followed by the big-endian uint32 length of the footer body. Readers
locate the footer with two small reads from the end regardless of the payload
size, so version and encryption checks never touch the payload.

The footer body is a YAML document of a closed, versioned structure. Unknown
fields and unknown schema numbers are rejected rather than ignored.
*/
package footer
