/*
Package companyfile reads and writes company files.

A company file is a single portable file holding the whole business data of
one company as a set of named entries (see package archive). On save the
entries are

  - packed into an archive stream,
  - compressed,
  - encrypted with a key derived from the password, if any,
  - followed by a footer with everything needed to read them back.

On open the footer is read first. The format version and the password are
checked against it before the payload is touched, then the chain is reversed
and the entries are migrated to the current schema. Files of older schemas
are backed up before migration, and the original file is guaranteed to stay
byte-identical if any migration step fails.

Files are always written to a temporary file of the same directory which then
replaces the destination, so an interrupted or failed save never damages the
existing file. Saves of the same path are serialized.

Extensions select the file kind: ".argo" for companies, ".argobk" for backup
containers of several companies and ".argotemplate" for templates.
*/
package companyfile
